package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// MirroredStore pairs a durable store with an in-memory mirror. Writes
// land on the durable store first; reads are served from memory so the
// status-poll path never touches the database.
type MirroredStore struct {
	durable Store
	mirror  *MemoryStore
}

// NewMirroredStore warms the mirror from the durable store's
// non-terminal and recent records, then serves reads from memory.
func NewMirroredStore(ctx context.Context, durable Store) (*MirroredStore, error) {
	m := &MirroredStore{durable: durable, mirror: NewMemoryStore()}
	for _, status := range []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		list, err := durable.GetByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to warm job mirror: %w", err)
		}
		for _, job := range list {
			if err := m.mirror.Create(ctx, job); err != nil {
				return nil, err
			}
		}
	}
	slog.Info("Job mirror warmed from durable store")
	return m, nil
}

// Create persists to the durable store, then the mirror
func (m *MirroredStore) Create(ctx context.Context, job *Job) error {
	if err := m.durable.Create(ctx, job); err != nil {
		return err
	}
	return m.mirror.Create(ctx, job)
}

// Update persists to the durable store, then the mirror
func (m *MirroredStore) Update(ctx context.Context, job *Job) error {
	if err := m.durable.Update(ctx, job); err != nil {
		return err
	}
	return m.mirror.Update(ctx, job)
}

// Get serves from the mirror, falling back to the durable store for
// records that predate the warm-up window
func (m *MirroredStore) Get(ctx context.Context, id string) (*Job, error) {
	job, err := m.mirror.Get(ctx, id)
	if err == nil {
		return job, nil
	}
	job, err = m.durable.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cerr := m.mirror.Create(ctx, job); cerr != nil {
		slog.Warn("Failed to backfill job mirror", "job_id", id, "error", cerr)
	}
	return job, nil
}

// GetByStatus serves from the mirror
func (m *MirroredStore) GetByStatus(ctx context.Context, status Status) ([]*Job, error) {
	return m.mirror.GetByStatus(ctx, status)
}

// Close releases the durable store
func (m *MirroredStore) Close() error {
	return m.durable.Close()
}
