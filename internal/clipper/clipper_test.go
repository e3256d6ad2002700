package clipper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipcast/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildClipArgs(t *testing.T) {
	args := BuildClipArgs("/tmp/job/source.mp3", 30000, 60500, "/tmp/job/clip.mp3")

	assert.Equal(t, []string{
		"-y",
		"-i", "/tmp/job/source.mp3",
		"-ss", "30.000",
		"-to", "60.500",
		"-map", "0:a:0",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"/tmp/job/clip.mp3",
	}, args)

	// Seek must come after the input so the cut is decode-accurate
	iIdx, ssIdx := indexOf(args, "-i"), indexOf(args, "-ss")
	assert.Less(t, iIdx, ssIdx)
}

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.000", formatSeconds(0))
	assert.Equal(t, "1.000", formatSeconds(1000))
	assert.Equal(t, "17.250", formatSeconds(17250))
	assert.Equal(t, "240.001", formatSeconds(240001))
}

func TestSourceExt(t *testing.T) {
	assert.Equal(t, ".mp3", sourceExt("https://cdn.example.test/ep.mp3?sig=abc"))
	assert.Equal(t, ".m4a", sourceExt("https://cdn.example.test/shows/ep.m4a"))
	assert.Equal(t, ".mp3", sourceExt("https://cdn.example.test/stream"))
	assert.Equal(t, ".mp3", sourceExt("https://cdn.example.test/page.html"))
	assert.Equal(t, ".mp3", sourceExt("::bad url::"))
}

func TestDownloadSuccess(t *testing.T) {
	body := strings.Repeat("audio-bytes-", 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New()
	dest := filepath.Join(t.TempDir(), "source.mp3")
	require.NoError(t, c.download(context.Background(), srv.URL+"/ep.mp3", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestDownloadStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      jobs.Kind
		retriable bool
	}{
		{"not found", http.StatusNotFound, jobs.KindSourceUnavailable, false},
		{"gone", http.StatusGone, jobs.KindSourceUnavailable, false},
		{"bad gateway", http.StatusBadGateway, jobs.KindSourceTransient, true},
		{"service unavailable", http.StatusServiceUnavailable, jobs.KindSourceTransient, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New()
			err := c.download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "s.mp3"))
			require.Error(t, err)
			assert.Equal(t, tt.kind, jobs.KindOf(err))
			assert.Equal(t, tt.retriable, jobs.Retriable(err))
		})
	}
}

func TestDownloadTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.(http.Flusher).Flush()
		w.Write([]byte("short"))
		// Hijack and drop the connection so the body ends early
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	c := New()
	err := c.download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "s.mp3"))
	require.Error(t, err)
	assert.Equal(t, jobs.KindSourceTransient, jobs.KindOf(err))
	assert.True(t, jobs.Retriable(err))
}

func TestDownloadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New()
	err := c.download(ctx, srv.URL, filepath.Join(t.TempDir(), "s.mp3"))
	require.Error(t, err)
	assert.Equal(t, jobs.KindSourceTimeout, jobs.KindOf(err))
	assert.True(t, jobs.Retriable(err))
}

func TestDownloadInvalidURL(t *testing.T) {
	c := New()
	err := c.download(context.Background(), "http://\x00bad", filepath.Join(t.TempDir(), "s.mp3"))
	require.Error(t, err)
	assert.Equal(t, jobs.KindInvalidRequest, jobs.KindOf(err))
}
