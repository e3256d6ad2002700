package media

import (
	"context"
	"errors"
	"strings"

	"clipcast/internal/jobs"
)

// transientPatterns are FFmpeg stderr fragments that indicate a
// failure worth retrying: upstream hiccups, short reads, starved
// resources. Matching is case-insensitive substring.
var transientPatterns = []string{
	"connection reset",
	"connection refused",
	"connection timed out",
	"i/o timeout",
	"i/o error",
	"timed out",
	"temporarily unavailable",
	"server returned 5",
	"end of file",
	"broken pipe",
	"cannot allocate memory",
	"tls",
}

// TransientStderr reports whether FFmpeg's stderr looks like a
// transient failure rather than bad input
func TransientStderr(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ClassifyRunError tags a failed media tool run with a processing
// kind: context expiry maps to MEDIA_TRANSIENT (the per-stage clock
// is generous and the work is cheap to redo), recognized transient
// stderr maps to MEDIA_TRANSIENT, everything else is MEDIA_FATAL.
func ClassifyRunError(err error, stderr string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return jobs.Wrap(jobs.KindMediaTransient, err, "media tool cancelled")
	}
	if TransientStderr(stderr) {
		return jobs.Wrap(jobs.KindMediaTransient, err, "transient media failure: %s", LastStderrLine(stderr))
	}
	return jobs.Wrap(jobs.KindMediaFatal, err, "media tool failed: %s", LastStderrLine(stderr))
}

// LastStderrLine extracts the final non-empty stderr line, which is
// where FFmpeg puts its actual error
func LastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no stderr output"
}
