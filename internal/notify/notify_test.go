package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"clipcast/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedJob() *jobs.Job {
	job := jobs.NewJob(jobs.VideoRequest{
		AudioURL:    "https://example.test/ep.mp3",
		ClipStartMs: 0,
		ClipEndMs:   30000,
		Podcast: jobs.PodcastMeta{
			Title:       "The one about onboarding",
			PodcastName: "Business Weekly",
		},
		DeviceToken: "ExponentPushToken[abc123]",
	}, 0.015, 90, 2)
	job.Result = &jobs.Result{
		VideoURL:         "https://clips.example.test/" + job.ID + ".mp4",
		FileSizeBytes:    2 * 1024 * 1024,
		ProcessingTimeMs: 42100,
		CostBreakdown:    jobs.CostBreakdown{Download: 0.001, Composition: 0.002},
	}
	return job
}

func TestPushCompleted(t *testing.T) {
	var got pushMessage
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	n := NewWithClient(srv.URL, "", "", "", srv.Client())
	job := completedJob()
	n.PushCompleted(context.Background(), job)

	require.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "ExponentPushToken[abc123]", got.To)
	assert.Equal(t, "Your clip is ready", got.Title)
	assert.Contains(t, got.Body, "Business Weekly")
	assert.Contains(t, got.Body, "The one about onboarding")
	assert.Equal(t, job.ID, got.Data["jobId"])
	assert.Equal(t, "video_ready", got.Data["type"])
	assert.Equal(t, job.Result.VideoURL, got.Data["videoUrl"])
}

func TestPushSkippedWithoutDeviceToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := NewWithClient(srv.URL, "", "", "", srv.Client())
	job := completedJob()
	job.Request.DeviceToken = ""
	n.PushCompleted(context.Background(), job)

	assert.Zero(t, calls.Load())
}

func TestPushFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "push provider down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWithClient(srv.URL, "", "", "", srv.Client())
	// Must not panic or propagate anything
	n.PushCompleted(context.Background(), completedJob())
}

func TestChatNotifications(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		var msg telegramMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "-100123", msg.ChatID)
		texts = append(texts, msg.Text)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewWithClient("", srv.URL, "test-token", "-100123", srv.Client())
	job := completedJob()

	n.ChatJobStarted(context.Background(), job)
	n.ChatJobCompleted(context.Background(), job)
	job.Error = "MEDIA_FATAL: ffmpeg exited 1"
	job.Retries = 2
	n.ChatJobFailed(context.Background(), job)

	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "started")
	assert.Contains(t, texts[0], "30s clip")
	assert.Contains(t, texts[0], "$0.0150")
	assert.Contains(t, texts[1], "completed in 42.1s")
	assert.Contains(t, texts[1], "est $0.0150")
	assert.Contains(t, texts[1], "realized $0.0030")
	assert.Contains(t, texts[1], "2.0MB")
	assert.Contains(t, texts[2], "failed after 2 retries")
	assert.Contains(t, texts[2], "MEDIA_FATAL")
}

func TestChatSkippedWhenUnconfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := NewWithClient("", srv.URL, "", "", srv.Client())
	n.ChatJobStarted(context.Background(), completedJob())
	assert.Zero(t, calls.Load())
}
