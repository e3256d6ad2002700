// Package captions turns a clipped audio file into display-ready
// caption chunks via an AssemblyAI-compatible provider. Failures here
// never fail a job: the processor logs a warning and renders without
// captions.
package captions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipcast/internal/jobs"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollBudget   = 120 * time.Second

	// Internal retries of the whole upload+transcribe sequence before
	// the pipeline gives up and the job degrades to no captions
	maxAttempts = 3
)

// Pipeline drives upload, transcription polling, chunking and styling
type Pipeline struct {
	client       *Client
	debug        bool
	pollInterval time.Duration
	pollBudget   time.Duration
}

// NewPipeline creates a caption pipeline. debug turns on verbose
// per-stage logging without raising the global log level.
func NewPipeline(client *Client, debug bool) *Pipeline {
	return &Pipeline{
		client:       client,
		debug:        debug,
		pollInterval: defaultPollInterval,
		pollBudget:   defaultPollBudget,
	}
}

// Generate produces styled caption chunks for the clipped audio at
// clipPath. Timestamps are clip-relative by construction: the provider
// receives the already-cut clip, so its word clocks start at zero.
func (p *Pipeline) Generate(ctx context.Context, clipPath string, style jobs.CaptionStyle, smart bool) ([]Chunk, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		transcript, err := p.transcribe(ctx, clipPath, smart)
		if err == nil {
			chunks := ChunkTranscript(transcript)
			ApplyStyle(chunks, style)
			p.logDetail("Caption chunks built",
				"transcript_id", transcript.ID, "words", len(transcript.Words),
				"utterances", len(transcript.Utterances), "chunks", len(chunks))
			if n := countFallbacks(chunks); n > 0 {
				slog.Warn("Caption chunks fell back to proportional timing",
					"transcript_id", transcript.ID, "chunks", len(chunks), "fallbacks", n)
			}
			if smart {
				logInsights(transcript)
			}
			return chunks, nil
		}

		lastErr = err
		if !jobs.Retriable(err) {
			break
		}
		slog.Warn("Caption attempt failed, retrying",
			"attempt", attempt, "max", maxAttempts, "error", err)
	}
	return nil, fmt.Errorf("caption pipeline gave up: %w", lastErr)
}

// transcribe runs one upload -> create -> poll sequence. The polling
// loop is a plain state machine with an explicit wall-clock budget.
func (p *Pipeline) transcribe(ctx context.Context, clipPath string, smart bool) (*Transcript, error) {
	uploadURL, err := p.client.Upload(ctx, clipPath)
	if err != nil {
		return nil, err
	}
	p.logDetail("Clip uploaded to provider", "upload_url", uploadURL)

	transcript, err := p.client.CreateTranscript(ctx, uploadURL, smart)
	if err != nil {
		return nil, err
	}
	p.logDetail("Transcription requested", "transcript_id", transcript.ID, "status", transcript.Status)

	deadline := time.Now().Add(p.pollBudget)
	for !transcript.Terminal() {
		if time.Now().After(deadline) {
			return nil, jobs.E(jobs.KindCaptionTimeout,
				"transcription %s still %s after %s", transcript.ID, transcript.Status, p.pollBudget)
		}
		select {
		case <-ctx.Done():
			return nil, jobs.Wrap(jobs.KindCaptionTimeout, ctx.Err(), "transcription poll cancelled")
		case <-time.After(p.pollInterval):
		}

		transcript, err = p.client.GetTranscript(ctx, transcript.ID)
		if err != nil {
			return nil, err
		}
		p.logDetail("Transcription poll", "transcript_id", transcript.ID, "status", transcript.Status)
	}

	if transcript.Status == "error" {
		return nil, jobs.E(jobs.KindCaptionProvider, "transcription failed: %s", transcript.Error)
	}
	return transcript, nil
}

// countFallbacks reports how many chunks carry proportional timing
// because text matching found no contiguous words for them
func countFallbacks(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.LastWordIndex < 0 {
			n++
		}
	}
	return n
}

// logDetail emits caption-pipeline detail at Info when DEBUG_CAPTIONS
// is set, otherwise at Debug
func (p *Pipeline) logDetail(msg string, args ...any) {
	if p.debug {
		slog.Info(msg, args...)
		return
	}
	slog.Debug(msg, args...)
}

// logInsights records the smart-feature models for later product work.
// Nothing here reaches the rendered video.
func logInsights(t *Transcript) {
	if t.AutoHighlightsResult != nil && len(t.AutoHighlightsResult.Results) > 0 {
		top := t.AutoHighlightsResult.Results[0]
		slog.Info("Smart insight: highlights",
			"transcript_id", t.ID, "count", len(t.AutoHighlightsResult.Results),
			"top", top.Text, "rank", top.Rank)
	}
	if n := len(t.SentimentAnalysisResults); n > 0 {
		pos, neg := 0, 0
		for _, s := range t.SentimentAnalysisResults {
			switch s.Sentiment {
			case "POSITIVE":
				pos++
			case "NEGATIVE":
				neg++
			}
		}
		slog.Info("Smart insight: sentiment",
			"transcript_id", t.ID, "sentences", n, "positive", pos, "negative", neg)
	}
	if n := len(t.Entities); n > 0 {
		slog.Info("Smart insight: entities", "transcript_id", t.ID, "count", n)
	}
	if t.IABCategoriesResult != nil && len(t.IABCategoriesResult.Summary) > 0 {
		var topCat string
		var topScore float64
		for cat, score := range t.IABCategoriesResult.Summary {
			if score > topScore {
				topCat, topScore = cat, score
			}
		}
		slog.Info("Smart insight: topics",
			"transcript_id", t.ID, "count", len(t.IABCategoriesResult.Summary),
			"top", topCat, "score", topScore)
	}
}
