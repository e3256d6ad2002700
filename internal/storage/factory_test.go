package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipcast/internal/config"
)

func TestNewDefaultsToLocal(t *testing.T) {
	origBackend, origDir := config.StorageBackend, config.VideoDir
	defer func() { config.StorageBackend, config.VideoDir = origBackend, origDir }()

	config.StorageBackend = ""
	config.VideoDir = t.TempDir()

	st, err := New(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, st)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	orig := config.StorageBackend
	defer func() { config.StorageBackend = orig }()

	config.StorageBackend = "ftp"
	_, err := New(context.Background())
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestValidateConfig(t *testing.T) {
	origBucket, origAccess, origSecret := config.S3Bucket, config.S3AccessKey, config.S3SecretKey
	origDir, origKeyFile := config.VideoDir, config.GDriveKeyFile
	defer func() {
		config.S3Bucket, config.S3AccessKey, config.S3SecretKey = origBucket, origAccess, origSecret
		config.VideoDir, config.GDriveKeyFile = origDir, origKeyFile
	}()

	tests := []struct {
		name    string
		backend Backend
		setup   func()
		wantErr string
	}{
		{
			name:    "s3 missing bucket",
			backend: BackendS3,
			setup: func() {
				config.S3Bucket = ""
				config.S3AccessKey = "key"
				config.S3SecretKey = "secret"
			},
			wantErr: "S3_BUCKET",
		},
		{
			name:    "r2 missing credentials",
			backend: BackendR2,
			setup: func() {
				config.S3Bucket = "videos"
				config.S3AccessKey = ""
				config.S3SecretKey = ""
			},
			wantErr: "AWS_ACCESS_KEY_ID",
		},
		{
			name:    "s3 complete",
			backend: BackendS3,
			setup: func() {
				config.S3Bucket = "videos"
				config.S3AccessKey = "key"
				config.S3SecretKey = "secret"
			},
		},
		{
			name:    "gdrive missing credentials",
			backend: BackendGDrive,
			setup:   func() { config.GDriveKeyFile = "" },
			wantErr: "GOOGLE_APPLICATION_CREDENTIALS",
		},
		{
			name:    "local missing dir",
			backend: BackendLocal,
			setup:   func() { config.VideoDir = "" },
			wantErr: "VIDEO_DIR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			err := validateConfig(tt.backend)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
