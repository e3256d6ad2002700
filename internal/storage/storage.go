// Package storage abstracts where finished videos live. The local
// backend serves files through the API's download route; S3/R2 and
// Google Drive hand out direct URLs.
package storage

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const videoMIME = "video/mp4"

// Object describes one stored video
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Storage is implemented by every video backend. Implementations must
// be safe for concurrent use by workers and the download endpoint.
type Storage interface {
	// Upload stores the file at localPath under name and returns a
	// direct playback URL, or "" when the backend has none and the
	// API's download route is the only path to the bytes.
	Upload(ctx context.Context, localPath, name string) (string, error)

	// Open streams a stored video. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)

	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes a stored video. Deleting a missing video is not
	// an error; the retention sweep may race a manual cleanup.
	Delete(ctx context.Context, name string) error

	// List returns every stored video for the retention sweep.
	List(ctx context.Context) ([]Object, error)
}

// VideoName is the storage name for a job's output
func VideoName(jobID string) string {
	return jobID + ".mp4"
}

// Sweep deletes videos older than maxAge and returns how many went.
// Job records are kept; only the bytes expire.
func Sweep(ctx context.Context, st Storage, maxAge time.Duration, now time.Time) (int, error) {
	objects, err := st.List(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	cutoff := now.Add(-maxAge)
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}
		if err := st.Delete(ctx, obj.Name); err != nil {
			slog.Warn("Retention delete failed", "name", obj.Name, "error", err)
			continue
		}
		slog.Info("Expired video deleted", "name", obj.Name, "age", now.Sub(obj.ModTime).Round(time.Minute))
		deleted++
	}
	return deleted, nil
}
