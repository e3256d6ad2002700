// Package clipper downloads a source audio file and cuts the requested
// window into a normalized MP3. The cut bytes are produced once and
// reused by both the caption pipeline and the muxer, so captions always
// describe exactly the audio the viewer hears.
package clipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/media"
)

const (
	downloadTimeout = 60 * time.Second
	// FFmpeg gets five times the clip length, with a floor covering
	// process startup on short clips
	minCutTimeout = 30 * time.Second

	// Container duration metadata is approximate; allow the clip end
	// to overshoot the probed source length by this much
	durationSlackMs = 500
)

// Clipper cuts byte-accurate audio segments out of remote sources
type Clipper struct {
	FFmpegPath  string
	FFprobePath string
	client      *http.Client
}

// New creates a clipper using the configured tool paths
func New() *Clipper {
	return &Clipper{
		FFmpegPath:  config.FFmpegPath,
		FFprobePath: config.FFprobePath,
		client:      &http.Client{},
	}
}

// Clip downloads audioURL into workDir and cuts [clipStartMs,
// clipEndMs) into workDir/clip.mp3, returning the clip path. The
// source download stays in workDir so retries of later stages never
// re-fetch a URL whose payload may have rotated.
func (c *Clipper) Clip(ctx context.Context, audioURL string, clipStartMs, clipEndMs int, workDir string) (string, error) {
	sourcePath := filepath.Join(workDir, "source"+sourceExt(audioURL))
	if err := c.download(ctx, audioURL, sourcePath); err != nil {
		return "", err
	}

	probe, err := media.Probe(ctx, c.FFprobePath, sourcePath)
	if err != nil {
		// A payload ffprobe cannot parse usually means the CDN served
		// an error page with a 200; worth one more fetch
		return "", jobs.Wrap(jobs.KindSourceTransient, err, "source is not parseable audio")
	}

	sourceMs := int(probe.DurationSec() * 1000)
	if clipStartMs >= sourceMs {
		return "", jobs.E(jobs.KindInvalidClipRange,
			"clip start %dms is beyond source duration %dms", clipStartMs, sourceMs)
	}
	if clipEndMs > sourceMs+durationSlackMs {
		return "", jobs.E(jobs.KindInvalidClipRange,
			"clip end %dms is beyond source duration %dms", clipEndMs, sourceMs)
	}

	clipPath := filepath.Join(workDir, "clip.mp3")
	args := BuildClipArgs(sourcePath, clipStartMs, clipEndMs, clipPath)

	cutTimeout := 5 * time.Duration(clipEndMs-clipStartMs) * time.Millisecond
	if cutTimeout < minCutTimeout {
		cutTimeout = minCutTimeout
	}
	cutCtx, cancel := context.WithTimeout(ctx, cutTimeout)
	defer cancel()

	slog.Debug("Cutting clip", "source", sourcePath, "start_ms", clipStartMs, "end_ms", clipEndMs)
	res, err := media.Run(cutCtx, c.FFmpegPath, args)
	if err != nil {
		return "", media.ClassifyRunError(err, string(res.Stderr))
	}

	info, err := os.Stat(clipPath)
	if err != nil || info.Size() == 0 {
		return "", jobs.E(jobs.KindMediaFatal, "ffmpeg produced no clip output")
	}

	slog.Info("Clip produced",
		"path", clipPath, "bytes", info.Size(), "duration_ms", clipEndMs-clipStartMs)
	return clipPath, nil
}

// download streams the full source into destPath. HTTP status and
// transport failures are classified for the scheduler's retry
// decision.
func (c *Clipper) download(ctx context.Context, rawURL, destPath string) error {
	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return jobs.Wrap(jobs.KindInvalidRequest, err, "invalid audio url")
	}
	req.Header.Set("User-Agent", "clipcast/1.0")

	slog.Debug("Downloading source audio", "url", rawURL)
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return jobs.Wrap(jobs.KindSourceTimeout, err, "source download timed out")
		}
		return jobs.Wrap(jobs.KindSourceTransient, err, "source download failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return jobs.E(jobs.KindSourceUnavailable, "source returned HTTP %d", resp.StatusCode)
	default:
		return jobs.E(jobs.KindSourceTransient, "source returned HTTP %d", resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create source file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(destPath)
		if isTimeout(err) {
			return jobs.Wrap(jobs.KindSourceTimeout, err, "source download timed out after %d bytes", written)
		}
		return jobs.Wrap(jobs.KindSourceTransient, err, "source body truncated after %d bytes", written)
	}
	if resp.ContentLength > 0 && written < resp.ContentLength {
		return jobs.E(jobs.KindSourceTransient,
			"source body truncated: got %d of %d bytes", written, resp.ContentLength)
	}

	slog.Debug("Source downloaded", "bytes", written)
	return nil
}

// BuildClipArgs constructs the ffmpeg arguments for one cut. Seeking
// happens after -i so frames are decoded from the start and dropped,
// which stays sample-accurate even when keyframes are sparse. The
// output is a single normalized MP3 stream; channel layout is
// preserved.
func BuildClipArgs(inputPath string, clipStartMs, clipEndMs int, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-ss", formatSeconds(clipStartMs),
		"-to", formatSeconds(clipEndMs),
		"-map", "0:a:0",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		outputPath,
	}
}

func formatSeconds(ms int) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000.0)
}

// sourceExt keeps the origin's file extension when it looks like
// audio, defaulting to .mp3. FFmpeg probes content regardless, the
// extension just helps inspection of leftover temp dirs.
func sourceExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp3"
	}
	switch ext := filepath.Ext(u.Path); ext {
	case ".mp3", ".m4a", ".aac", ".wav", ".ogg", ".flac":
		return ext
	}
	return ".mp3"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
