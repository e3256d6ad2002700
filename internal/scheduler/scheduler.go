// Package scheduler admits video jobs against the feature flag, queue
// cap and daily budget, then runs them on a bounded worker pool with
// retry and crash recovery. The job store is the durable source of
// truth; the in-memory queue only orders dispatch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"clipcast/internal/budget"
	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/metrics"
	"clipcast/internal/notify"
)

// Pipeline executes one job end to end. Cleanup removes a job's
// scratch space after a terminal failure.
type Pipeline interface {
	Process(ctx context.Context, job *jobs.Job) (*jobs.Result, string, error)
	Cleanup(jobID string)
}

// Limits bound the scheduler's admission and execution behavior
type Limits struct {
	MaxConcurrent int
	MaxQueueSize  int
	MaxRetries    int
	JobTimeout    time.Duration
}

// DefaultLimits reads the limits from the environment configuration
func DefaultLimits() Limits {
	return Limits{
		MaxConcurrent: config.MaxConcurrent,
		MaxQueueSize:  config.MaxQueueSize,
		MaxRetries:    config.MaxRetries,
		JobTimeout:    config.JobTimeout,
	}
}

// Receipt is returned to the submitter on successful admission
type Receipt struct {
	JobID            string `json:"jobId"`
	EstimatedTimeSec int    `json:"estimatedTime"`
	QueuePosition    int    `json:"queuePosition"`
}

// StatusView is a job record augmented with live queue state
type StatusView struct {
	Job           *jobs.Job
	QueuePosition int
	ActiveJobs    int
}

// Scheduler owns job admission and the worker pool
type Scheduler struct {
	store    jobs.Store
	ledger   *budget.Ledger
	pipeline Pipeline
	notifier *notify.Notifier
	limits   Limits

	mu       sync.Mutex
	pending  []*jobs.Job // queued jobs in dispatch order; store mirrors
	queued   int         // pending plus admissions not yet enqueued
	active   map[string]struct{}
	draining bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler with limits from the environment configuration
func New(st jobs.Store, ledger *budget.Ledger, pipe Pipeline, notifier *notify.Notifier) *Scheduler {
	return NewWithLimits(st, ledger, pipe, notifier, DefaultLimits())
}

// NewWithLimits builds a scheduler with explicit limits (for testing)
func NewWithLimits(st jobs.Store, ledger *budget.Ledger, pipe Pipeline, notifier *notify.Notifier, limits Limits) *Scheduler {
	s := &Scheduler{
		store:    st,
		ledger:   ledger,
		pipeline: pipe,
		notifier: notifier,
		limits:   limits,
		active:   make(map[string]struct{}),
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start recovers interrupted work and begins dispatching. Jobs found in
// processing were orphaned by a crash; they are demoted to queued and
// rejoin the queue in their original admission order.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runCtx, s.cancel = context.WithCancel(ctx)

	interrupted, err := s.store.GetByStatus(ctx, jobs.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to scan for interrupted jobs: %w", err)
	}
	for _, job := range interrupted {
		job.Status = jobs.StatusQueued
		job.StartedAt = nil
		if err := s.store.Update(ctx, job); err != nil {
			return fmt.Errorf("failed to requeue interrupted job %s: %w", job.ID, err)
		}
		slog.Warn("Recovered interrupted job", "job_id", job.ID, "retries", job.Retries)
	}

	queued, err := s.store.GetByStatus(ctx, jobs.StatusQueued)
	if err != nil {
		return fmt.Errorf("failed to load queued jobs: %w", err)
	}

	s.mu.Lock()
	s.pending = queued
	s.queued = len(queued)
	s.pumpLocked()
	s.publishGaugesLocked()
	s.mu.Unlock()

	if len(queued) > 0 {
		slog.Info("Scheduler started with recovered queue",
			"queued", len(queued), "recovered", len(interrupted))
	}
	return nil
}

// Shutdown stops dispatching new work and waits for active jobs until
// ctx expires, then cancels whatever is still running.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("shutdown deadline reached with jobs still running: %w", ctx.Err())
	}
}

// Submit admits a request: feature flag, queue cap, request
// validation, then the budget commit. Validation runs before the
// commit so a rejected request never touches the ledger. Admitted jobs
// are persisted as queued before the receipt is returned.
func (s *Scheduler) Submit(ctx context.Context, req jobs.VideoRequest) (*Receipt, error) {
	if !config.EnableServerVideo {
		return nil, s.reject(jobs.E(jobs.KindFeatureDisabled, "server video rendering is disabled"))
	}

	if err := s.reserve(); err != nil {
		return nil, s.reject(err)
	}
	admitted := false
	defer func() {
		if !admitted {
			s.release()
		}
	}()

	if err := validateRequest(&req); err != nil {
		return nil, s.reject(err)
	}

	estimate := budget.EstimateCost(req.ClipDurationMs(), req.CaptionsEnabled)
	if err := s.ledger.Commit(ctx, estimate); err != nil {
		return nil, s.reject(err)
	}

	job := jobs.NewJob(req, estimate, budget.EstimateTimeSec(req.ClipDurationMs(), req.CaptionsEnabled), s.limits.MaxRetries)
	if err := s.store.Create(ctx, job); err != nil {
		return nil, s.reject(jobs.Wrap(jobs.KindInternal, err, "failed to persist job"))
	}
	admitted = true
	metrics.JobsAdmitted.Inc()

	s.mu.Lock()
	s.insertPendingLocked(job)
	pos := s.positionLocked(job)
	s.pumpLocked()
	s.publishGaugesLocked()
	s.mu.Unlock()

	slog.Info("Job admitted",
		"job_id", job.ID,
		"clip_ms", req.ClipDurationMs(),
		"captions", req.CaptionsEnabled,
		"estimated_cost", fmt.Sprintf("%.4f", estimate),
		"queue_position", pos)
	return &Receipt{JobID: job.ID, EstimatedTimeSec: job.EstimatedTimeSec, QueuePosition: pos}, nil
}

// GetStatus returns the stored record plus its live queue position and
// the current number of active workers.
func (s *Scheduler) GetStatus(ctx context.Context, jobID string) (*StatusView, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	view := &StatusView{Job: job, ActiveJobs: len(s.active)}
	if job.Status == jobs.StatusQueued {
		view.QueuePosition = s.positionLocked(job)
	}
	s.mu.Unlock()
	return view, nil
}

// reserve claims a queue slot, failing when the queue is at capacity
func (s *Scheduler) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queued >= s.limits.MaxQueueSize {
		return jobs.E(jobs.KindQueueFull, "queue is full: %d jobs waiting", s.queued)
	}
	s.queued++
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.queued--
	s.mu.Unlock()
}

// insertPendingLocked places a job by admission order. Retried jobs
// keep their original createdAt, so they rejoin near the front.
func (s *Scheduler) insertPendingLocked(job *jobs.Job) {
	at := len(s.pending)
	for i, p := range s.pending {
		if job.CreatedAt.Before(p.CreatedAt) ||
			(job.CreatedAt.Equal(p.CreatedAt) && job.ID < p.ID) {
			at = i
			break
		}
	}
	s.pending = append(s.pending, nil)
	copy(s.pending[at+1:], s.pending[at:])
	s.pending[at] = job
}

// positionLocked counts queued jobs admitted strictly before this one
func (s *Scheduler) positionLocked(job *jobs.Job) int {
	pos := 0
	for _, p := range s.pending {
		if p.ID == job.ID {
			continue
		}
		if p.CreatedAt.Before(job.CreatedAt) ||
			(p.CreatedAt.Equal(job.CreatedAt) && p.ID < job.ID) {
			pos++
		}
	}
	return pos
}

// pumpQueue fills free worker slots from the front of the queue
func (s *Scheduler) pumpQueue() {
	s.mu.Lock()
	s.pumpLocked()
	s.mu.Unlock()
}

// pumpLocked is the single dispatch critical section. It must never
// block: workers are handed off to goroutines immediately.
func (s *Scheduler) pumpLocked() {
	if s.draining {
		return
	}
	for len(s.active) < s.limits.MaxConcurrent && len(s.pending) > 0 {
		job := s.pending[0]
		s.pending = s.pending[1:]
		s.queued--
		s.active[job.ID] = struct{}{}
		s.wg.Add(1)
		go s.run(job)
	}
}

// run owns one job from claim to terminal state or requeue
func (s *Scheduler) run(job *jobs.Job) {
	defer s.wg.Done()

	started := time.Now().UTC()
	job.Status = jobs.StatusProcessing
	job.StartedAt = &started
	if err := s.store.Update(s.runCtx, job); err != nil {
		slog.Error("Failed to mark job processing", "job_id", job.ID, "error", err)
	}
	s.notifier.ChatJobStarted(s.runCtx, job)

	jobCtx, cancel := context.WithTimeout(s.runCtx, s.limits.JobTimeout)
	result, warning, perr := s.pipeline.Process(jobCtx, job)
	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	cancel()

	if perr != nil && timedOut {
		// The wall clock is the outer bound; a job that blew it does
		// not get another attempt
		perr = jobs.Wrap(jobs.KindTimeout, perr, "job exceeded the %s wall clock", s.limits.JobTimeout)
	}

	requeue := false
	switch {
	case perr == nil:
		s.finishCompleted(job, result, warning)
	case jobs.Retriable(perr) && job.Retries < job.MaxRetries:
		s.requeueForRetry(job, perr)
		requeue = true
	default:
		s.finishFailed(job, perr)
	}

	s.mu.Lock()
	delete(s.active, job.ID)
	if requeue {
		s.queued++
		s.insertPendingLocked(job)
	}
	s.pumpLocked()
	s.publishGaugesLocked()
	s.mu.Unlock()
}

// reject counts a refused submission before returning its error
func (s *Scheduler) reject(err error) error {
	metrics.JobsRejected.WithLabelValues(string(jobs.KindOf(err))).Inc()
	return err
}

func (s *Scheduler) publishGaugesLocked() {
	metrics.QueueDepth.Set(float64(len(s.pending)))
	metrics.ActiveWorkers.Set(float64(len(s.active)))
}

func (s *Scheduler) finishCompleted(job *jobs.Job, result *jobs.Result, warning string) {
	now := time.Now().UTC()
	job.Status = jobs.StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Warning = warning
	job.Error = ""
	if err := s.store.Update(s.runCtx, job); err != nil {
		slog.Error("Failed to mark job completed", "job_id", job.ID, "error", err)
	}

	s.ledger.AddRealized(s.runCtx, job.ID, job.EstimatedCost, result.CostBreakdown.Total)
	metrics.JobsCompleted.Inc()
	metrics.JobDuration.Observe(float64(result.ProcessingTimeMs) / 1000.0)
	committed, realized, _ := s.ledger.TodaySpend(s.runCtx)
	metrics.DailySpend.WithLabelValues("committed").Set(committed)
	metrics.DailySpend.WithLabelValues("realized").Set(realized)

	s.notifier.PushCompleted(s.runCtx, job)
	s.notifier.ChatJobCompleted(s.runCtx, job)
	slog.Info("Job completed",
		"job_id", job.ID,
		"processing_ms", result.ProcessingTimeMs,
		"bytes", result.FileSizeBytes,
		"warning", warning)
}

func (s *Scheduler) requeueForRetry(job *jobs.Job, perr error) {
	job.Retries++
	job.Status = jobs.StatusQueued
	job.StartedAt = nil
	job.Error = ""
	if err := s.store.Update(s.runCtx, job); err != nil {
		slog.Error("Failed to requeue job", "job_id", job.ID, "error", err)
	}
	metrics.JobsRetried.Inc()
	slog.Warn("Job retrying",
		"job_id", job.ID,
		"retries", job.Retries,
		"max_retries", job.MaxRetries,
		"kind", jobs.KindOf(perr),
		"error", perr)
}

func (s *Scheduler) finishFailed(job *jobs.Job, perr error) {
	now := time.Now().UTC()
	job.Status = jobs.StatusFailed
	job.FailedAt = &now
	job.Error = fmt.Sprintf("%s: %v", jobs.KindOf(perr), perr)
	if err := s.store.Update(s.runCtx, job); err != nil {
		slog.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
	}
	metrics.JobsFailed.WithLabelValues(string(jobs.KindOf(perr))).Inc()

	s.pipeline.Cleanup(job.ID)
	s.notifier.ChatJobFailed(s.runCtx, job)
	slog.Error("Job failed",
		"job_id", job.ID,
		"retries", job.Retries,
		"kind", jobs.KindOf(perr),
		"error", perr)
}

// validateRequest rejects requests the pipeline could never serve
func validateRequest(req *jobs.VideoRequest) error {
	if req.AudioURL == "" {
		return jobs.E(jobs.KindInvalidRequest, "audioUrl is required")
	}
	u, err := url.Parse(req.AudioURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return jobs.E(jobs.KindInvalidRequest, "audioUrl must be an http(s) URL")
	}
	if req.ClipStartMs < 0 {
		return jobs.E(jobs.KindInvalidRequest, "clipStart must not be negative")
	}
	d := req.ClipDurationMs()
	if d < config.MinClipDurationMs || d > config.MaxClipDurationMs {
		return jobs.E(jobs.KindInvalidRequest,
			"clip duration must be between %ds and %ds, got %dms",
			config.MinClipDurationMs/1000, config.MaxClipDurationMs/1000, d)
	}
	if !jobs.ValidStyle(req.CaptionStyle) {
		return jobs.E(jobs.KindInvalidRequest, "unknown caption style %q", req.CaptionStyle)
	}
	return nil
}
