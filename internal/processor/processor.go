// Package processor runs one admitted job end to end: clip the audio,
// caption it, render frames, mux, and hand the result to storage. The
// scheduler owns all job-record writes; this package only produces a
// Result or a kind-tagged error.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clipcast/internal/budget"
	"clipcast/internal/captions"
	"clipcast/internal/clipper"
	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/muxer"
	"clipcast/internal/renderer"
	"clipcast/internal/storage"
)

// Clipper yields a byte-accurate on-disk audio clip
type Clipper interface {
	Clip(ctx context.Context, audioURL string, clipStartMs, clipEndMs int, workDir string) (string, error)
}

// Captioner turns a clipped audio file into display-ready chunks
type Captioner interface {
	Generate(ctx context.Context, clipPath string, style jobs.CaptionStyle, smart bool) ([]captions.Chunk, error)
}

// Rasterizer produces the PNG frame sequence for a clip
type Rasterizer interface {
	RenderFrames(ctx context.Context, meta jobs.PodcastMeta, durationMs int, chunks []captions.Chunk, workDir string) (string, int, error)
}

// Muxer combines frames and clipped audio into a validated MP4
type Muxer interface {
	Mux(ctx context.Context, framesDir, audioPath string, durationMs int, workDir string) (*muxer.Output, error)
}

// DisabledRasterizer is wired when the video feature flag is off
type DisabledRasterizer struct{}

func (DisabledRasterizer) RenderFrames(context.Context, jobs.PodcastMeta, int, []captions.Chunk, string) (string, int, error) {
	return "", 0, jobs.E(jobs.KindFeatureDisabled, "server video rendering is disabled")
}

// DisabledMuxer is wired when the video feature flag is off
type DisabledMuxer struct{}

func (DisabledMuxer) Mux(context.Context, string, string, int, string) (*muxer.Output, error) {
	return nil, jobs.E(jobs.KindFeatureDisabled, "server video rendering is disabled")
}

// Processor executes the per-job pipeline
type Processor struct {
	clipper    Clipper
	captioner  Captioner
	rasterizer Rasterizer
	muxer      Muxer
	storage    storage.Storage
	tempRoot   string
}

// New builds a processor from the environment configuration. The
// rasterizer and muxer become rejecting stubs when ENABLE_SERVER_VIDEO
// is off, and the captioner stays nil without an API key.
func New(st storage.Storage) (*Processor, error) {
	p := &Processor{
		clipper:  clipper.New(),
		storage:  st,
		tempRoot: os.TempDir(),
	}

	if config.EnableServerVideo {
		r, err := renderer.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize renderer: %w", err)
		}
		p.rasterizer = r
		p.muxer = muxer.New()
	} else {
		p.rasterizer = DisabledRasterizer{}
		p.muxer = DisabledMuxer{}
	}

	if config.AssemblyAIKey != "" {
		client := captions.NewClient(config.AssemblyAIKey, config.AssemblyAIBaseURL)
		p.captioner = captions.NewPipeline(client, config.DebugCaptions)
	}

	return p, nil
}

// NewWithDependencies builds a processor with injected stages. Test hook.
func NewWithDependencies(c Clipper, capt Captioner, r Rasterizer, m Muxer, st storage.Storage, tempRoot string) *Processor {
	return &Processor{
		clipper:    c,
		captioner:  capt,
		rasterizer: r,
		muxer:      m,
		storage:    st,
		tempRoot:   tempRoot,
	}
}

// Process runs the pipeline for one job and returns its result plus a
// user-facing warning when captions degraded. Errors come back tagged
// with their kind; the scheduler decides retriability. The job's work
// directory survives a retriable failure so the scheduler can hand it
// to Cleanup only on terminal outcomes.
func (p *Processor) Process(ctx context.Context, job *jobs.Job) (*jobs.Result, string, error) {
	start := time.Now()
	req := job.Request
	durationMs := req.ClipDurationMs()

	workDir := p.workDir(job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create work dir: %w", err)
	}

	slog.Info("Job processing started",
		"job_id", job.ID, "duration_ms", durationMs, "captions", req.CaptionsEnabled)

	clipPath, err := p.clipper.Clip(ctx, req.AudioURL, req.ClipStartMs, req.ClipEndMs, workDir)
	if err != nil {
		return nil, "", err
	}

	// Captions degrade, never fail: a clip without captions is still a
	// deliverable video
	var chunks []captions.Chunk
	var warning string
	captioned := false
	if req.CaptionsEnabled {
		if p.captioner == nil {
			warning = "captions unavailable: transcription is not configured"
			slog.Warn("Captions requested but transcription is not configured", "job_id", job.ID)
		} else if chunks, err = p.captioner.Generate(ctx, clipPath, req.CaptionStyle, req.EnableSmartFeatures); err != nil {
			warning = "captions unavailable: transcription failed"
			slog.Warn("Caption pipeline failed, continuing without captions",
				"job_id", job.ID, "kind", jobs.KindOf(err), "error", err)
			chunks = nil
		} else {
			captioned = true
		}
	}

	framesDir, frameCount, err := p.rasterizer.RenderFrames(ctx, req.Podcast, durationMs, chunks, workDir)
	if err != nil {
		return nil, warning, err
	}
	slog.Info("Frames rendered", "job_id", job.ID, "frames", frameCount)

	out, err := p.muxer.Mux(ctx, framesDir, clipPath, durationMs, workDir)
	if err != nil {
		return nil, warning, err
	}

	name := storage.VideoName(job.ID)
	directURL, err := p.storage.Upload(ctx, out.Path, name)
	if err != nil {
		return nil, warning, jobs.Wrap(jobs.KindInternal, err, "failed to store video")
	}

	// The upload is the last reader of the work dir
	p.Cleanup(job.ID)

	downloadURL := apiDownloadURL(job.ID)
	videoURL := directURL
	if videoURL == "" {
		videoURL = downloadURL
	}

	breakdown := budget.RealizedBreakdown(durationMs, captioned)
	result := &jobs.Result{
		VideoURL:         videoURL,
		DownloadURL:      downloadURL,
		FileSizeBytes:    out.SizeBytes,
		DurationSec:      out.DurationSec,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		CostBreakdown:    breakdown,
	}

	slog.Info("Job pipeline finished",
		"job_id", job.ID,
		"bytes", out.SizeBytes,
		"processing_ms", result.ProcessingTimeMs,
		"realized_cost", breakdown.Total)
	return result, warning, nil
}

// Cleanup removes a job's work directory. Called by the pipeline on
// success and by the scheduler on terminal failure; retriable failures
// keep the directory so a retry can inspect or reuse it.
func (p *Processor) Cleanup(jobID string) {
	dir := p.workDir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove work dir", "path", dir, "error", err)
	}
}

func (p *Processor) workDir(jobID string) string {
	return filepath.Join(p.tempRoot, "clipcast-"+jobID)
}

// apiDownloadURL builds the API download route for a job, absolute
// when a public domain is configured
func apiDownloadURL(jobID string) string {
	if config.PublicDomain != "" {
		return fmt.Sprintf("https://%s/api/download-video/%s", config.PublicDomain, jobID)
	}
	return "/api/download-video/" + jobID
}
