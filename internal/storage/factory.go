package storage

import (
	"context"
	"fmt"
	"log/slog"

	"clipcast/internal/config"
)

// Backend identifies a storage implementation
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendS3     Backend = "s3"
	BackendR2     Backend = "r2"
	BackendGDrive Backend = "gdrive"
)

// New creates the storage backend named by STORAGE_BACKEND
func New(ctx context.Context) (Storage, error) {
	backend := Backend(config.StorageBackend)
	if backend == "" {
		backend = BackendLocal
	}
	if err := validateConfig(backend); err != nil {
		return nil, fmt.Errorf("storage configuration invalid: %w", err)
	}

	slog.Info("Creating storage backend", "type", backend)
	switch backend {
	case BackendLocal:
		return NewLocal(config.VideoDir)
	case BackendS3, BackendR2:
		return NewS3(ctx, S3Config{
			Region:      config.S3Region,
			Bucket:      config.S3Bucket,
			AccessKey:   config.S3AccessKey,
			SecretKey:   config.S3SecretKey,
			EndpointURL: config.S3EndpointURL,
			BaseURL:     config.S3BaseURL,
			PublicRead:  config.S3PublicRead,
		})
	case BackendGDrive:
		return NewGDrive(ctx)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

func validateConfig(backend Backend) error {
	switch backend {
	case BackendLocal:
		if config.VideoDir == "" {
			return fmt.Errorf("VIDEO_DIR is required for local storage")
		}
	case BackendS3, BackendR2:
		if config.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for %s storage", backend)
		}
		if config.S3AccessKey == "" || config.S3SecretKey == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for %s storage", backend)
		}
	case BackendGDrive:
		if config.GDriveKeyFile == "" {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is required for gdrive storage")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", backend)
	}
	return nil
}
