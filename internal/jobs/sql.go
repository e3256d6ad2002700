package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS video_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS video_jobs_status ON video_jobs (status, created_at);
`

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// SQLStore is the durable job store. The record is stored as a JSON
// blob with status and created_at mirrored into columns for the
// recovery and FIFO queries.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens the database, pings it with bounded retries and
// ensures the schema exists. driver is "postgres" or "sqlite".
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		slog.Warn("Database ping failed, retrying", "driver", driver, "attempt", attempt, "error", pingErr)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, pingErr)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	slog.Info("Job store connected", "driver", driver)
	return &SQLStore{db: db, driver: driver}, nil
}

// rebind rewrites ? placeholders to $n for the postgres driver
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Create persists a new record
func (s *SQLStore) Create(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO video_jobs (id, status, created_at, data) VALUES (?, ?, ?, ?)`),
		job.ID, string(job.Status), job.CreatedAt.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// Update overwrites the record for job.ID
func (s *SQLStore) Update(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE video_jobs SET status = ?, data = ? WHERE id = ?`),
		string(job.Status), string(data), job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

// Get returns the record for id
func (s *SQLStore) Get(ctx context.Context, id string) (*Job, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT data FROM video_jobs WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return unmarshalJob(data)
}

// GetByStatus returns all records in status, oldest first
func (s *SQLStore) GetByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT data FROM video_jobs WHERE status = ? ORDER BY created_at ASC`),
		string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by status %s: %w", status, err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		job, err := unmarshalJob(data)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Close releases the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func unmarshalJob(data string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}
	return &job, nil
}
