// Package mock provides an in-memory Storage implementation for tests
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"clipcast/internal/storage"
)

// MemStorage keeps videos in a map. Safe for concurrent use.
type MemStorage struct {
	mu      sync.RWMutex
	files   map[string][]byte
	modTime map[string]time.Time

	// URLBase, when set, makes Upload return URLBase/name the way the
	// S3 backend does with a public bucket
	URLBase string
	// UploadErr forces Upload to fail
	UploadErr error
}

// NewMemStorage creates an empty in-memory store
func NewMemStorage() *MemStorage {
	return &MemStorage{
		files:   make(map[string][]byte),
		modTime: make(map[string]time.Time),
	}
}

func (m *MemStorage) Upload(ctx context.Context, localPath, name string) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	m.modTime[name] = time.Now()

	if m.URLBase != "" {
		return fmt.Sprintf("%s/%s", m.URLBase, name), nil
	}
	return "", nil
}

func (m *MemStorage) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	if !ok {
		return nil, 0, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *MemStorage) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok, nil
}

func (m *MemStorage) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	delete(m.modTime, name)
	return nil
}

func (m *MemStorage) List(ctx context.Context) ([]storage.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var objects []storage.Object
	for name, data := range m.files {
		objects = append(objects, storage.Object{
			Name:    name,
			Size:    int64(len(data)),
			ModTime: m.modTime[name],
		})
	}
	return objects, nil
}

// PutBytes seeds a stored video directly (test setup)
func (m *MemStorage) PutBytes(name string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	m.modTime[name] = modTime
}

// Bytes returns a stored video's content (test assertions)
func (m *MemStorage) Bytes(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return data, ok
}

// Len returns how many videos are stored
func (m *MemStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

var _ storage.Storage = (*MemStorage)(nil)
