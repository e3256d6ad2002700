// Package muxer combines a rendered PNG sequence and the clipped audio
// into the final MP4 and validates the container before it is
// published.
package muxer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/media"
)

const (
	// FFmpeg gets five times the clip length, with a floor covering
	// encoder startup on short clips
	minMuxTimeout = 30 * time.Second

	// -shortest stops at the shorter stream, which can land the
	// container a frame or so off the requested window
	durationToleranceMs = 200
)

// Output describes a muxed and validated MP4
type Output struct {
	Path        string
	SizeBytes   int64
	DurationSec float64
}

// Muxer encodes frame sequences over clipped audio
type Muxer struct {
	FFmpegPath  string
	FFprobePath string
}

// New creates a muxer using the configured tool paths
func New() *Muxer {
	return &Muxer{FFmpegPath: config.FFmpegPath, FFprobePath: config.FFprobePath}
}

// Mux encodes framesDir/frame_%06d.png at the canvas frame rate over
// audioPath into workDir/out.mp4, then probes the result. The returned
// output is playable and faststart-flagged.
func (m *Muxer) Mux(ctx context.Context, framesDir, audioPath string, durationMs int, workDir string) (*Output, error) {
	outputPath := filepath.Join(workDir, "out.mp4")
	args := BuildMuxArgs(framesDir, audioPath, outputPath)

	muxTimeout := 5 * time.Duration(durationMs) * time.Millisecond
	if muxTimeout < minMuxTimeout {
		muxTimeout = minMuxTimeout
	}
	muxCtx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()

	slog.Debug("Muxing video", "frames_dir", framesDir, "audio", audioPath, "duration_ms", durationMs)
	res, err := media.Run(muxCtx, m.FFmpegPath, args)
	if err != nil {
		stderr := string(res.Stderr)
		if muxCtx.Err() != nil || media.TransientStderr(stderr) {
			return nil, media.ClassifyRunError(err, stderr)
		}
		// Frames and clip are content-derived, so a clean-looking mux
		// failure is usually host-side and worth a retry
		return nil, jobs.Wrap(jobs.KindMuxFailed, err, "mux failed: %s", media.LastStderrLine(stderr))
	}

	out, err := m.Validate(ctx, outputPath, durationMs)
	if err != nil {
		return nil, err
	}

	slog.Info("Video muxed",
		"path", out.Path, "bytes", out.SizeBytes, "duration_sec", out.DurationSec)
	return out, nil
}

// Validate probes the muxed file and rejects outputs that would play
// wrong before they reach storage.
func (m *Muxer) Validate(ctx context.Context, path string, wantDurationMs int) (*Output, error) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, jobs.E(jobs.KindOutputInvalid, "mux produced no output")
	}

	probe, err := media.Probe(ctx, m.FFprobePath, path)
	if err != nil {
		return nil, jobs.Wrap(jobs.KindOutputInvalid, err, "output is not probeable")
	}
	if err := CheckProbe(probe, wantDurationMs); err != nil {
		return nil, err
	}

	return &Output{Path: path, SizeBytes: info.Size(), DurationSec: probe.DurationSec()}, nil
}

// CheckProbe applies the output contract to a probe result: exactly
// one video and one audio stream, the portrait canvas geometry, and a
// duration within the tolerance of the requested window.
func CheckProbe(probe *media.ProbeResult, wantDurationMs int) error {
	video := probe.CountStreams("video")
	audio := probe.CountStreams("audio")
	if video != 1 || audio != 1 {
		return jobs.E(jobs.KindOutputInvalid,
			"output has %d video and %d audio streams, want 1 and 1", video, audio)
	}
	if v := probe.FirstStream("video"); v.Width != config.CanvasWidth || v.Height != config.CanvasHeight {
		return jobs.E(jobs.KindOutputInvalid,
			"output is %dx%d, want %dx%d", v.Width, v.Height, config.CanvasWidth, config.CanvasHeight)
	}

	gotMs := int(probe.DurationSec() * 1000)
	if diff := gotMs - wantDurationMs; diff < -durationToleranceMs || diff > durationToleranceMs {
		return jobs.E(jobs.KindOutputInvalid,
			"output duration %dms is more than %dms away from requested %dms",
			gotMs, durationToleranceMs, wantDurationMs)
	}
	return nil
}

// BuildMuxArgs constructs the ffmpeg arguments for the final encode:
// the PNG sequence read by the image2 demuxer at the canvas frame
// rate, H.264 main profile in yuv420p for broad device compatibility,
// AAC audio, stopped at the shorter stream, with the moov atom up
// front so playback starts while the file still streams.
func BuildMuxArgs(framesDir, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "image2",
		"-framerate", strconv.Itoa(config.FrameRate),
		"-i", filepath.Join(framesDir, "frame_%06d.png"),
		"-i", audioPath,
		"-c:v", "libx264",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
}
