package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores videos on the host filesystem. Downloads go through
// the API, so Upload never returns a direct URL.
type Local struct {
	dir string
}

// NewLocal creates the video directory if needed
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create video dir %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid video name %q", name)
	}
	return filepath.Join(l.dir, name), nil
}

func (l *Local) Upload(ctx context.Context, localPath, name string) (string, error) {
	dest, err := l.path(name)
	if err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create stored video: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to store video: %w", err)
	}
	return "", nil
}

func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	p, err := l.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete video %s: %w", name, err)
	}
	return nil
}

func (l *Local) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list video dir: %w", err)
	}

	var objects []Object
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return objects, nil
}
