package jobs

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get for unknown job IDs
var ErrNotFound = errors.New("job not found")

// Store persists job records. Each job has a single writer (the
// scheduler at admission, then the owning worker); reads may be
// concurrent. Implementations must return copies, never shared
// pointers into their own state.
type Store interface {
	// Create persists a new record; the job ID must be unused
	Create(ctx context.Context, job *Job) error
	// Update overwrites the record for job.ID
	Update(ctx context.Context, job *Job) error
	// Get returns the record for id, or ErrNotFound
	Get(ctx context.Context, id string) (*Job, error)
	// GetByStatus returns all records in the given status, oldest first
	GetByStatus(ctx context.Context, status Status) ([]*Job, error)
	Close() error
}

// Open selects a store from the DATABASE_URL shape: postgres:// DSNs
// use lib/pq, anything else is treated as a sqlite file path. An empty
// URL yields a memory-only store, acceptable in dev.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewMemoryStore(), nil
	}
	driver := "sqlite"
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		driver = "postgres"
	}
	durable, err := NewSQLStore(ctx, driver, databaseURL)
	if err != nil {
		return nil, err
	}
	return NewMirroredStore(ctx, durable)
}

func sortByCreatedAt(list []*Job) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
