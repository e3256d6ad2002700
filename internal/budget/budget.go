package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"clipcast/internal/config"
	"clipcast/internal/jobs"

	"github.com/redis/go-redis/v9"
)

const (
	committedKeyPrefix = "clipcast:budget:committed:"
	realizedKeyPrefix  = "clipcast:budget:realized:"
	// Keys outlive their day so yesterday's totals stay inspectable
	keyTTL = 48 * time.Hour
)

// Ledger tracks daily spend keyed by UTC calendar date. Admission
// commits estimates; completion records realized cost for
// reconciliation logging. Crossing UTC midnight starts a fresh bucket.
type Ledger struct {
	cap float64

	mu        sync.Mutex
	day       string
	committed float64
	realized  float64

	client *redis.Client // nil runs memory-only
	now    func() time.Time
}

// New creates a memory-only ledger with the given daily cap in USD
func New(capUSD float64) *Ledger {
	return &Ledger{cap: capUSD, now: time.Now}
}

// NewWithRedis creates a ledger persisted through Redis so the daily
// total survives restarts. addr accepts redis:// URLs.
func NewWithRedis(ctx context.Context, capUSD float64, addr string) (*Ledger, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis address: %w", err)
	}
	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	slog.Info("Budget ledger using Redis", "addr", opts.Addr)
	l := New(capUSD)
	l.client = client
	return l, nil
}

// NewWithClient creates a redis-persisted ledger from an existing
// client (for testing)
func NewWithClient(capUSD float64, client *redis.Client) *Ledger {
	l := New(capUSD)
	l.client = client
	return l
}

// Cap returns the configured daily cap in USD
func (l *Ledger) Cap() float64 {
	return l.cap
}

// Commit atomically checks estimate against today's remaining budget
// and, when it fits, adds it to the committed total. Returns a
// BUDGET_EXCEEDED error when the estimate does not fit.
func (l *Ledger) Commit(ctx context.Context, estimate float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(ctx)

	if l.committed+estimate > l.cap {
		return jobs.E(jobs.KindBudgetExceeded,
			"daily budget exceeded: committed $%.4f + $%.4f > cap $%.2f", l.committed, estimate, l.cap)
	}
	l.committed += estimate
	l.persist(ctx, committedKeyPrefix, estimate)
	return nil
}

// AddRealized records the realized cost of a completed job and logs
// the reconciliation against its admission estimate. It never rejects.
func (l *Ledger) AddRealized(ctx context.Context, jobID string, estimate, realized float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(ctx)

	l.realized += realized
	l.persist(ctx, realizedKeyPrefix, realized)

	delta := realized - estimate
	if math.Abs(delta) > 0.0001 {
		slog.Info("Budget reconciliation",
			"job_id", jobID,
			"estimated", fmt.Sprintf("%.4f", estimate),
			"realized", fmt.Sprintf("%.4f", realized),
			"delta", fmt.Sprintf("%+.4f", delta))
	}
}

// TodaySpend returns the committed and realized totals for the current
// UTC day
func (l *Ledger) TodaySpend(ctx context.Context) (committed, realized float64, day string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(ctx)
	return l.committed, l.realized, l.day
}

// Close releases the Redis client if one is attached
func (l *Ledger) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// rollover resets the bucket when the UTC day changed, reloading any
// persisted totals for the new day. Callers hold l.mu.
func (l *Ledger) rollover(ctx context.Context) {
	today := l.now().UTC().Format("2006-01-02")
	if l.day == today {
		return
	}
	l.day = today
	l.committed = 0
	l.realized = 0

	if l.client == nil {
		return
	}
	if v, err := l.client.Get(ctx, committedKeyPrefix+today).Float64(); err == nil {
		l.committed = v
	} else if err != redis.Nil {
		slog.Warn("Budget ledger read failed, continuing memory-only for today", "error", err)
	}
	if v, err := l.client.Get(ctx, realizedKeyPrefix+today).Float64(); err == nil {
		l.realized = v
	}
}

// persist mirrors an increment into Redis. Failures degrade to the
// in-memory total. Callers hold l.mu.
func (l *Ledger) persist(ctx context.Context, prefix string, amount float64) {
	if l.client == nil {
		return
	}
	key := prefix + l.day
	pipe := l.client.Pipeline()
	pipe.IncrByFloat(ctx, key, amount)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("Budget ledger persist failed", "key", key, "error", err)
	}
}

// EstimateCost prices a clip before admission: per-minute audio
// handling, a flat video charge and per-minute captions when enabled.
// A 60s clip without captions comes to $0.005.
func EstimateCost(clipDurationMs int, captionsEnabled bool) float64 {
	minutes := float64(clipDurationMs) / 60000.0
	cost := minutes*config.CostPerAudioMinute + config.CostPerVideoFlat
	if captionsEnabled {
		cost += minutes * config.CostPerCaptionMinute
	}
	return cost
}

// EstimateTimeSec predicts end-to-end processing time. Frame rendering
// and encoding dominate and scale with clip length.
func EstimateTimeSec(clipDurationMs int, captionsEnabled bool) int {
	sec := float64(clipDurationMs) / 1000.0
	est := 30 + 2*sec
	if captionsEnabled {
		// Transcription polling adds roughly half the clip again
		est += sec / 2
	}
	return int(math.Ceil(est))
}

// RealizedBreakdown prices the stages that actually ran for a
// completed job.
func RealizedBreakdown(clipDurationMs int, captioned bool) jobs.CostBreakdown {
	minutes := float64(clipDurationMs) / 60000.0
	b := jobs.CostBreakdown{
		Download:    minutes * config.CostDownloadPerMinute,
		Frames:      minutes * config.CostFramesPerMinute,
		Composition: minutes * config.CostCompositionPerMinute,
		Storage:     config.CostStoragePerFile,
	}
	if captioned {
		b.Captions = minutes * config.CostPerCaptionMinute
	}
	b.Sum()
	return b
}
