package jobs

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps job records in a mutex-guarded map. It backs the
// hot status-poll path and is the whole store when no DATABASE_URL is
// configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// Create persists a new record
func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Update overwrites the record for job.ID
func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("update %s: %w", job.ID, ErrNotFound)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a copy of the record for id
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// GetByStatus returns copies of all records in status, oldest first
func (s *MemoryStore) GetByStatus(_ context.Context, status Status) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, job.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
