package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipcast/internal/captions"
	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/muxer"
	"clipcast/internal/storage"
	"clipcast/internal/storage/mock"
)

// pinRelativeURLs keeps download URLs host-relative regardless of the
// environment the tests run in
func pinRelativeURLs(t *testing.T) {
	t.Helper()
	prev := config.PublicDomain
	config.PublicDomain = ""
	t.Cleanup(func() { config.PublicDomain = prev })
}

type fakeClipper struct {
	err   error
	calls int
}

func (f *fakeClipper) Clip(_ context.Context, _ string, _, _ int, workDir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(workDir, "clip.m4a")
	if err := os.WriteFile(path, []byte("aac"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeCaptioner struct {
	chunks []captions.Chunk
	err    error
	calls  int
}

func (f *fakeCaptioner) Generate(context.Context, string, jobs.CaptionStyle, bool) ([]captions.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeRasterizer struct {
	err      error
	gotChunk []captions.Chunk
}

func (f *fakeRasterizer) RenderFrames(_ context.Context, _ jobs.PodcastMeta, durationMs int, chunks []captions.Chunk, workDir string) (string, int, error) {
	f.gotChunk = chunks
	if f.err != nil {
		return "", 0, f.err
	}
	framesDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return "", 0, err
	}
	return framesDir, durationMs * 12 / 1000, nil
}

type fakeMuxer struct {
	err error
}

func (f *fakeMuxer) Mux(_ context.Context, _, _ string, durationMs int, workDir string) (*muxer.Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(workDir, "output.mp4")
	if err := os.WriteFile(path, []byte("mp4mp4"), 0o644); err != nil {
		return nil, err
	}
	return &muxer.Output{Path: path, SizeBytes: 6, DurationSec: float64(durationMs) / 1000.0}, nil
}

func testJob(captionsOn bool) *jobs.Job {
	req := jobs.VideoRequest{
		AudioURL:        "https://cdn.example.com/ep1.mp3",
		ClipStartMs:     5000,
		ClipEndMs:       35000,
		Podcast:         jobs.PodcastMeta{PodcastName: "Test Show", Title: "Episode One"},
		CaptionsEnabled: captionsOn,
		CaptionStyle:    jobs.StyleNormal,
	}
	return jobs.NewJob(req, 0.015, 45, 2)
}

func newTestProcessor(t *testing.T, capt Captioner, st storage.Storage) (*Processor, *fakeClipper, *fakeRasterizer) {
	t.Helper()
	cl := &fakeClipper{}
	ra := &fakeRasterizer{}
	return NewWithDependencies(cl, capt, ra, &fakeMuxer{}, st, t.TempDir()), cl, ra
}

func TestProcessSuccess(t *testing.T) {
	pinRelativeURLs(t)
	st := mock.NewMemStorage()
	st.URLBase = "https://videos.example.com"
	capt := &fakeCaptioner{chunks: []captions.Chunk{{Text: "hello world", StartMs: 0, EndMs: 1200}}}
	p, cl, ra := newTestProcessor(t, capt, st)

	job := testJob(true)
	result, warning, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, warning)

	assert.Equal(t, 1, cl.calls)
	assert.Equal(t, 1, capt.calls)
	assert.Len(t, ra.gotChunk, 1)

	name := storage.VideoName(job.ID)
	assert.Equal(t, "https://videos.example.com/"+name, result.VideoURL)
	assert.Equal(t, "/api/download-video/"+job.ID, result.DownloadURL)
	assert.Equal(t, int64(6), result.FileSizeBytes)
	assert.InDelta(t, 30.0, result.DurationSec, 0.001)
	assert.GreaterOrEqual(t, result.ProcessingTimeMs, int64(0))

	// 30s captioned clip accrues every lane of the realized cost
	assert.Greater(t, result.CostBreakdown.Captions, 0.0)
	assert.Greater(t, result.CostBreakdown.Total, result.CostBreakdown.Captions)

	stored, ok := st.Bytes(name)
	require.True(t, ok)
	assert.Equal(t, []byte("mp4mp4"), stored)
	assert.NoDirExists(t, filepath.Join(p.tempRoot, "clipcast-"+job.ID))
}

func TestProcessFallsBackToAPIDownloadURL(t *testing.T) {
	pinRelativeURLs(t)
	st := mock.NewMemStorage() // no URLBase, like the local backend
	p, _, _ := newTestProcessor(t, nil, st)

	job := testJob(false)
	result, _, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "/api/download-video/"+job.ID, result.VideoURL)
	assert.Equal(t, result.DownloadURL, result.VideoURL)
}

func TestProcessCaptionFailureDegrades(t *testing.T) {
	st := mock.NewMemStorage()
	capt := &fakeCaptioner{err: jobs.E(jobs.KindCaptionProvider, "transcript failed")}
	p, _, ra := newTestProcessor(t, capt, st)

	job := testJob(true)
	result, warning, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, warning, "captions unavailable")
	assert.Nil(t, ra.gotChunk)

	// No caption cost is realized for an uncaptioned video
	assert.Zero(t, result.CostBreakdown.Captions)
	assert.Greater(t, result.CostBreakdown.Total, 0.0)
}

func TestProcessCaptionsNotConfigured(t *testing.T) {
	st := mock.NewMemStorage()
	p, _, _ := newTestProcessor(t, nil, st)

	result, warning, err := p.Process(context.Background(), testJob(true))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, warning, "not configured")
	assert.Zero(t, result.CostBreakdown.Captions)
}

func TestProcessCaptionsOffSkipsCaptioner(t *testing.T) {
	st := mock.NewMemStorage()
	capt := &fakeCaptioner{chunks: []captions.Chunk{{Text: "unused"}}}
	p, _, ra := newTestProcessor(t, capt, st)

	_, warning, err := p.Process(context.Background(), testJob(false))
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, 0, capt.calls)
	assert.Nil(t, ra.gotChunk)
}

func TestProcessClipFailureKeepsWorkDir(t *testing.T) {
	st := mock.NewMemStorage()
	clipErr := jobs.E(jobs.KindMediaTransient, "ffmpeg died")
	cl := &fakeClipper{err: clipErr}
	p := NewWithDependencies(cl, nil, &fakeRasterizer{}, &fakeMuxer{}, st, t.TempDir())

	job := testJob(false)
	result, _, err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, jobs.KindMediaTransient, jobs.KindOf(err))

	// A retriable failure leaves the directory for the next attempt;
	// the scheduler calls Cleanup on terminal outcomes
	dir := filepath.Join(p.tempRoot, "clipcast-"+job.ID)
	assert.DirExists(t, dir)
	p.Cleanup(job.ID)
	assert.NoDirExists(t, dir)
}

func TestProcessUploadFailure(t *testing.T) {
	st := mock.NewMemStorage()
	st.UploadErr = assert.AnError
	p, _, _ := newTestProcessor(t, nil, st)

	result, _, err := p.Process(context.Background(), testJob(false))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, jobs.KindInternal, jobs.KindOf(err))
	assert.True(t, jobs.Retriable(err))
}

func TestDisabledStubsRejectWithFeatureDisabled(t *testing.T) {
	st := mock.NewMemStorage()
	p := NewWithDependencies(&fakeClipper{}, nil, DisabledRasterizer{}, DisabledMuxer{}, st, t.TempDir())

	_, _, err := p.Process(context.Background(), testJob(false))
	require.Error(t, err)
	assert.Equal(t, jobs.KindFeatureDisabled, jobs.KindOf(err))
	assert.False(t, jobs.Retriable(err))

	_, err = DisabledMuxer{}.Mux(context.Background(), "frames", "clip.m4a", 1000, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, jobs.KindFeatureDisabled, jobs.KindOf(err))
}

func TestCleanupMissingDirIsQuiet(t *testing.T) {
	p, _, _ := newTestProcessor(t, nil, mock.NewMemStorage())
	p.Cleanup("never-created")
}
