package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipcast/internal/budget"
	"clipcast/internal/captions"
	"clipcast/internal/config"
	"clipcast/internal/endpoints"
	"clipcast/internal/jobs"
	"clipcast/internal/muxer"
	"clipcast/internal/notify"
	"clipcast/internal/processor"
	"clipcast/internal/scheduler"
	"clipcast/internal/storage"
)

// End-to-end flow over the HTTP surface. Only the media stages are
// stubbed; routes, scheduler, processor, job store and the local
// storage backend are the production wiring.

var mp4Payload = []byte("end-to-end mp4 payload")

type stubClipper struct{}

func (stubClipper) Clip(_ context.Context, _ string, _, _ int, workDir string) (string, error) {
	path := filepath.Join(workDir, "clip.m4a")
	return path, os.WriteFile(path, []byte("aac"), 0o644)
}

type stubRasterizer struct{}

func (stubRasterizer) RenderFrames(_ context.Context, _ jobs.PodcastMeta, durationMs int, _ []captions.Chunk, workDir string) (string, int, error) {
	dir := filepath.Join(workDir, "frames")
	return dir, durationMs * config.FrameRate / 1000, os.MkdirAll(dir, 0o755)
}

type stubMuxer struct{}

func (stubMuxer) Mux(_ context.Context, _, _ string, durationMs int, workDir string) (*muxer.Output, error) {
	path := filepath.Join(workDir, "output.mp4")
	if err := os.WriteFile(path, mp4Payload, 0o644); err != nil {
		return nil, err
	}
	return &muxer.Output{
		Path:        path,
		SizeBytes:   int64(len(mp4Payload)),
		DurationSec: float64(durationMs) / 1000.0,
	}, nil
}

func TestServerEndToEnd(t *testing.T) {
	prevEnabled, prevDomain := config.EnableServerVideo, config.PublicDomain
	config.EnableServerVideo = true
	config.PublicDomain = ""
	t.Cleanup(func() { config.EnableServerVideo, config.PublicDomain = prevEnabled, prevDomain })

	videos, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	store := jobs.NewMemoryStore()
	proc := processor.NewWithDependencies(stubClipper{}, nil, stubRasterizer{}, stubMuxer{}, videos, t.TempDir())
	sched := scheduler.NewWithLimits(store, budget.New(5), proc, notify.NewWithClient("", "", "", "", nil),
		scheduler.Limits{MaxConcurrent: 1, MaxQueueSize: 5, MaxRetries: 1, JobTimeout: time.Minute})
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	endpoints.SetupRoutes(router, sched, store, videos)
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, err := json.Marshal(map[string]any{
		"audioUrl":  "https://cdn.example.test/ep.mp3",
		"clipStart": 15000,
		"clipEnd":   45000,
		"podcast":   map[string]any{"title": "E1", "podcastName": "Show"},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/create-video", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var receipt struct {
		Success bool   `json:"success"`
		JobID   string `json:"jobId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	require.True(t, receipt.Success)
	require.NotEmpty(t, receipt.JobID)

	var final struct {
		Status string       `json:"status"`
		Result *jobs.Result `json:"result"`
	}
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/api/video-status/" + receipt.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if r.StatusCode != http.StatusOK {
			return false
		}
		var v struct {
			Status string       `json:"status"`
			Result *jobs.Result `json:"result"`
		}
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			return false
		}
		final = v
		return v.Status == string(jobs.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond, "job %s never completed", receipt.JobID)

	require.NotNil(t, final.Result)
	assert.Equal(t, "/api/download-video/"+receipt.JobID, final.Result.VideoURL)
	assert.Equal(t, int64(len(mp4Payload)), final.Result.FileSizeBytes)
	assert.Greater(t, final.Result.CostBreakdown.Total, 0.0)

	dl, err := http.Get(srv.URL + "/api/download-video/" + receipt.JobID)
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "video/mp4", dl.Header.Get("Content-Type"))
	got, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, mp4Payload, got)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logLevel("WARN"))
	assert.Equal(t, slog.LevelError, logLevel("error"))
	assert.Equal(t, slog.LevelInfo, logLevel("info"))
	assert.Equal(t, slog.LevelInfo, logLevel(""))
}
