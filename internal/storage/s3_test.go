//go:build integration

package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// Requires real credentials: AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// AWS_ENDPOINT_URL, S3_BUCKET.
func TestS3Integration(t *testing.T) {
	ctx := context.Background()
	st, err := NewS3(ctx, S3Config{
		Region:      os.Getenv("AWS_REGION"),
		Bucket:      os.Getenv("S3_BUCKET"),
		AccessKey:   os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
		EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
	})
	if err != nil {
		t.Skipf("Skipping S3 integration test: %v", err)
	}

	local := filepath.Join(t.TempDir(), "sample.mp4")
	if err := os.WriteFile(local, []byte("not really mp4 bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	name := "integration-test.mp4"

	t.Run("upload and open", func(t *testing.T) {
		url, err := st.Upload(ctx, local, name)
		if err != nil {
			t.Fatalf("Failed to upload: %v", err)
		}
		if url == "" {
			t.Error("Upload should return a URL for S3 backends")
		}

		rc, size, err := st.Open(ctx, name)
		if err != nil {
			t.Fatalf("Failed to open: %v", err)
		}
		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if string(body) != "not really mp4 bytes" || size != int64(len(body)) {
			t.Errorf("Round trip mismatch: %d bytes", len(body))
		}
	})

	t.Run("exists and delete", func(t *testing.T) {
		exists, err := st.Exists(ctx, name)
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if !exists {
			t.Error("Uploaded video should exist")
		}

		if err := st.Delete(ctx, name); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}

		exists, err = st.Exists(ctx, name)
		if err != nil {
			t.Fatalf("Failed to re-check existence: %v", err)
		}
		if exists {
			t.Error("Deleted video should not exist")
		}

		// Deleting again must stay quiet
		if err := st.Delete(ctx, name); err != nil {
			t.Errorf("Second delete should be idempotent: %v", err)
		}
	})
}
