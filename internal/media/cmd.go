package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"
)

// CmdResult holds the captured output and exit status of one subprocess run
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

// Run executes a media tool and captures both output streams. On a
// non-zero exit the result is still populated so callers can classify
// the stderr text.
func Run(ctx context.Context, path string, args []string) (CmdResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
		// CommandContext kills with SIGKILL on expiry; surface the
		// context error so callers classify the deadline, not the signal
		if ctx.Err() != nil {
			err = ctx.Err()
		}
	}

	res := CmdResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Code: code}
	if err != nil {
		slog.Debug("Media command failed",
			"tool", filepath.Base(path), "exit", code, "elapsed", time.Since(start).Round(time.Millisecond))
		return res, fmt.Errorf("%s exited %d: %w", filepath.Base(path), code, err)
	}
	return res, nil
}
