package renderer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipcast/internal/captions"
	"clipcast/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeta() jobs.PodcastMeta {
	return jobs.PodcastMeta{
		Title:       "Why the customer is always right",
		PodcastName: "Business Weekly",
		ArtworkURL:  "https://example.test/artwork.png",
	}
}

func TestBarHeights(t *testing.T) {
	h0 := BarHeights(0)
	// sin(0) = 0 for the first bar of the first frame
	assert.InDelta(t, 48.0*0.6, h0[0], 1e-9)
	assert.InDelta(t, 48.0*(0.6+0.4*math.Sin(0.3)), h0[1], 1e-9)
	assert.InDelta(t, 48.0*(0.6+0.4*math.Sin(1.2)), h0[4], 1e-9)

	h7 := BarHeights(7)
	assert.InDelta(t, 48.0*(0.6+0.4*math.Sin(0.7)), h7[0], 1e-9)
	assert.InDelta(t, 48.0*(0.6+0.4*math.Sin(0.7+0.9)), h7[3], 1e-9)

	// Heights oscillate inside [0.2·base, base]
	for i := 0; i < 200; i++ {
		for _, h := range BarHeights(i) {
			assert.GreaterOrEqual(t, h, 48.0*0.2-1e-9)
			assert.LessOrEqual(t, h, 48.0+1e-9)
		}
	}
}

func TestBuildLayout(t *testing.T) {
	l := BuildLayout(testMeta(), 30000)

	assert.Equal(t, 1080.0, l.Width)
	assert.Equal(t, 1920.0, l.Height)
	assert.InDelta(t, 86.4, l.Margin, 1e-9)
	assert.InDelta(t, 1080.0-2*86.4, l.ArtworkSide, 1e-9)
	assert.InDelta(t, 86.4, l.ArtworkX, 1e-9)
	assert.Equal(t, 12, l.FPS)
	assert.Equal(t, 360, l.FrameCount())

	// Progress bar sits exactly 15 canvas pixels under the title block
	titleBottom := l.TitleTopY + float64(len(l.TitleLines))*titleLineHeight
	assert.InDelta(t, titleBottom+15.0, l.ProgressY, 1e-9)

	// Bars are centered
	barsTotal := 5*barWidth + 4*barGap
	assert.InDelta(t, (1080.0-barsTotal)/2, l.BarsX, 1e-9)
}

func TestFrameCountRounding(t *testing.T) {
	assert.Equal(t, 12, BuildLayout(testMeta(), 1000).FrameCount())
	assert.Equal(t, 3, BuildLayout(testMeta(), 250).FrameCount())
	assert.Equal(t, 2880, BuildLayout(testMeta(), 240000).FrameCount())
}

func TestFrameAt(t *testing.T) {
	l := BuildLayout(testMeta(), 10000)
	chunks := []captions.Chunk{
		{Text: "first caption", StartMs: 0, EndMs: 2000},
		{Text: "second caption", StartMs: 4000, EndMs: 6000},
	}

	f0 := l.FrameAt(0, chunks)
	assert.Zero(t, f0.Progress)
	assert.Zero(t, f0.ProgressFillW)
	assert.Equal(t, []string{"first caption"}, f0.CaptionLines)

	// Frame 36 of 120 -> t=3s: between captions, no lines
	f36 := l.FrameAt(36, chunks)
	assert.Empty(t, f36.CaptionLines)
	assert.InDelta(t, 0.3, f36.Progress, 1e-9)
	assert.InDelta(t, 0.3*l.ProgressW, f36.ProgressFillW, 1e-9)

	// t=5s falls inside the second caption window
	f60 := l.FrameAt(60, chunks)
	assert.Equal(t, []string{"second caption"}, f60.CaptionLines)

	// Past the end, progress clamps to 1
	f999 := l.FrameAt(999, chunks)
	assert.Equal(t, 1.0, f999.Progress)
}

func TestActiveChunkBoundaries(t *testing.T) {
	chunks := []captions.Chunk{
		{Text: "a", StartMs: 1000, EndMs: 2000},
		{Text: "b", StartMs: 2000, EndMs: 3000},
	}

	assert.Nil(t, ActiveChunk(chunks, 999))
	assert.Equal(t, "a", ActiveChunk(chunks, 1000).Text)
	assert.Equal(t, "a", ActiveChunk(chunks, 1999).Text)
	// Window end is exclusive; the next chunk takes over exactly there
	assert.Equal(t, "b", ActiveChunk(chunks, 2000).Text)
	assert.Nil(t, ActiveChunk(chunks, 3000))
	assert.Nil(t, ActiveChunk(nil, 0))
}

func TestWrapTitle(t *testing.T) {
	assert.Equal(t, []string{"Short title"}, WrapTitle("Short title"))

	two := WrapTitle("Why the customer is always right about everything")
	require.Len(t, two, 2)
	for _, line := range two {
		assert.LessOrEqual(t, len(line), TitleLineChars)
	}

	long := WrapTitle(strings.Repeat("episode ", 20))
	require.Len(t, long, 2)
	assert.True(t, strings.HasSuffix(long[1], "…"), "overflow must ellipsize: %q", long[1])

	assert.Empty(t, WrapTitle(""))
}

func artworkServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
}

func TestRenderFramesDeterminism(t *testing.T) {
	srv := artworkServer(t)
	defer srv.Close()

	meta := testMeta()
	meta.ArtworkURL = srv.URL + "/artwork.png"
	chunks := []captions.Chunk{{Text: "hello world", StartMs: 0, EndMs: 250}}

	r, err := New()
	require.NoError(t, err)

	ctx := context.Background()
	dirA, countA, err := r.RenderFrames(ctx, meta, 250, chunks, t.TempDir())
	require.NoError(t, err)
	dirB, countB, err := r.RenderFrames(ctx, meta, 250, chunks, t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 3, countA)
	require.Equal(t, countA, countB)

	for i := 0; i < countA; i++ {
		a, err := os.ReadFile(framePath(dirA, i))
		require.NoError(t, err)
		b, err := os.ReadFile(framePath(dirB, i))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b), "frame %d differs between identical renders", i)
		assert.NotEmpty(t, a)
	}

	// Consecutive frames differ (the watermark dances)
	f0, _ := os.ReadFile(framePath(dirA, 0))
	f2, _ := os.ReadFile(framePath(dirA, 2))
	assert.False(t, bytes.Equal(f0, f2))
}

func TestRenderFramesPlaceholderArtwork(t *testing.T) {
	meta := testMeta()
	meta.ArtworkURL = "http://127.0.0.1:1/nope.png" // connection refused

	r, err := New()
	require.NoError(t, err)

	framesDir, count, err := r.RenderFrames(context.Background(), meta, 250, nil, t.TempDir())
	require.NoError(t, err, "missing artwork must not fail the render")
	require.Equal(t, 3, count)

	entries, err := os.ReadDir(framesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "frame_000000.png", entries[0].Name())
}

func TestRenderFramesZeroDuration(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, _, err = r.RenderFrames(context.Background(), testMeta(), 0, nil, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, jobs.KindMediaFatal, jobs.KindOf(err))
}

func TestFramePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/x", "frame_000042.png"), framePath("/tmp/x", 42))
}
