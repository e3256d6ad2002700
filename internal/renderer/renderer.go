// Package renderer turns a clip's metadata, artwork and captions into
// a directory of numbered PNG frames. Rendering is deterministic:
// identical inputs produce byte-identical frames, so a retried job
// re-encodes the same video.
package renderer

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"clipcast/internal/captions"
	"clipcast/internal/jobs"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/sync/errgroup"
)

const (
	backgroundColor = "#101024"
	trackColor      = "#3A3A55"
	accentColor     = "#FFFFFF"
	captionColor    = "#FFD866"
)

// Renderer rasterizes frames for the video pipeline. Fonts are parsed
// once at startup; faces are built per render goroutine because they
// carry mutable glyph caches.
type Renderer struct {
	fontRegular   *truetype.Font
	fontBold      *truetype.Font
	artworkClient *http.Client
}

// New parses the embedded typefaces and returns a ready renderer
func New() (*Renderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &Renderer{
		fontRegular:   regular,
		fontBold:      bold,
		artworkClient: &http.Client{},
	}, nil
}

func (r *Renderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// RenderFrames renders every frame for the clip into workDir/frames
// and returns the frame directory and frame count. Frames are named
// frame_%06d.png so the muxer's image2 demuxer reads them in order.
func (r *Renderer) RenderFrames(ctx context.Context, meta jobs.PodcastMeta, durationMs int, chunks []captions.Chunk, workDir string) (string, int, error) {
	layout := BuildLayout(meta, durationMs)
	frameCount := layout.FrameCount()
	if frameCount <= 0 {
		return "", 0, jobs.E(jobs.KindMediaFatal, "clip would render zero frames")
	}

	framesDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create frames dir: %w", err)
	}

	artwork := r.FetchArtwork(ctx, meta.ArtworkURL, layout)

	start := time.Now()
	workers := runtime.NumCPU()
	if workers > frameCount {
		workers = frameCount
	}

	// Frames are independent; shard the index range so each worker
	// builds its font faces once
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		shard := w
		g.Go(func() error {
			faces := r.newFaceSet()
			for i := shard; i < frameCount; i += workers {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				frame := r.rasterize(layout, artwork, faces, layout.FrameAt(i, chunks))
				if err := writePNG(framePath(framesDir, i), frame); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, fmt.Errorf("frame rendering failed: %w", err)
	}

	slog.Info("Frames rendered",
		"frames", frameCount, "workers", workers,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return framesDir, frameCount, nil
}

// faceSet carries one goroutine's font faces
type faceSet struct {
	name    font.Face
	title   font.Face
	caption font.Face
}

func (r *Renderer) newFaceSet() *faceSet {
	return &faceSet{
		name:    r.face(r.fontRegular, nameFontSize),
		title:   r.face(r.fontBold, titleFontSize),
		caption: r.face(r.fontBold, captionFontSize),
	}
}

// rasterize draws one complete frame
func (r *Renderer) rasterize(l *Layout, artwork image.Image, faces *faceSet, spec FrameSpec) image.Image {
	dc := gg.NewContext(int(l.Width), int(l.Height))

	dc.SetHexColor(backgroundColor)
	dc.Clear()

	dc.DrawImage(artwork, int(l.ArtworkX), int(l.ArtworkY))

	// Show name, small caps above the title
	dc.SetFontFace(faces.name)
	dc.SetRGB(0.72, 0.72, 0.80)
	dc.DrawStringAnchored(strings.ToUpper(l.PodcastName), l.Width/2, l.NameY, 0.5, 0.5)

	// Episode title
	dc.SetFontFace(faces.title)
	dc.SetRGB(1, 1, 1)
	for i, line := range l.TitleLines {
		y := l.TitleTopY + float64(i)*titleLineHeight
		dc.DrawStringAnchored(line, l.Width/2, y, 0.5, 0.5)
	}

	// Progress track and fill
	dc.SetHexColor(trackColor)
	dc.DrawRoundedRectangle(l.ProgressX, l.ProgressY, l.ProgressW, progressHeight, progressHeight/2)
	dc.Fill()
	if spec.ProgressFillW > 0 {
		dc.SetHexColor(accentColor)
		dc.DrawRoundedRectangle(l.ProgressX, l.ProgressY, spec.ProgressFillW, progressHeight, progressHeight/2)
		dc.Fill()
	}

	// Captions, centered as a block
	if len(spec.CaptionLines) > 0 {
		dc.SetFontFace(faces.caption)
		dc.SetHexColor(captionColor)
		blockTop := l.CaptionCenterY - float64(len(spec.CaptionLines)-1)*captionLineHeight/2
		for i, line := range spec.CaptionLines {
			dc.DrawStringAnchored(line, l.Width/2, blockTop+float64(i)*captionLineHeight, 0.5, 0.5)
		}
	}

	// Dancing-bars watermark
	dc.SetHexColor(accentColor)
	for bar := 0; bar < WatermarkBars; bar++ {
		h := spec.BarHeights[bar]
		x := l.BarsX + float64(bar)*(barWidth+barGap)
		dc.DrawRoundedRectangle(x, l.BarsBaseline-h, barWidth, h, barWidth/2)
		dc.Fill()
	}

	return dc.Image()
}

func framePath(framesDir string, i int) string {
	return filepath.Join(framesDir, fmt.Sprintf("frame_%06d.png", i))
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}
