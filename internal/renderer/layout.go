package renderer

import (
	"math"
	"strings"

	"clipcast/internal/captions"
	"clipcast/internal/config"
	"clipcast/internal/jobs"
)

// Geometry is derived from the canvas and an 8% side margin. The
// watermark oscillation constants define the visual identity of the
// output and must not change.
const (
	marginRatio        = 0.08
	artworkTopRatio    = 0.18
	artworkCornerRatio = 0.045

	// Episode titles wrap at 35 chars into at most two lines
	TitleLineChars = 35
	maxTitleLines  = 2

	nameFontSize    = 36.0
	titleFontSize   = 54.0
	titleLineHeight = 66.0

	// The progress bar sits this many canvas pixels under the title
	progressGap    = 15.0
	progressHeight = 8.0

	// The caption block centers in the band between the progress bar
	// and the watermark bars
	captionFontSize    = 44.0
	captionLineHeight  = 56.0
	captionCenterRatio = 0.87

	// Dancing-bars watermark
	WatermarkBars = 5
	barBaseHeight = 48.0
	barWidth      = 14.0
	barGap        = 10.0
)

// Layout holds every static position for one job's frames. It is
// computed once per job; only progress, bar heights and captions vary
// frame to frame.
type Layout struct {
	Width, Height float64
	Margin        float64

	ArtworkX, ArtworkY float64
	ArtworkSide        float64
	ArtworkRadius      float64

	PodcastName string
	NameY       float64

	TitleLines []string
	TitleTopY  float64

	ProgressX, ProgressY float64
	ProgressW            float64

	CaptionCenterY float64

	BarsX        float64
	BarsBaseline float64

	FPS         int
	DurationSec float64
}

// FrameSpec is everything needed to rasterize one frame with no access
// to shared mutable state.
type FrameSpec struct {
	Index         int
	TimeSec       float64
	Progress      float64
	ProgressFillW float64
	BarHeights    [WatermarkBars]float64
	CaptionLines  []string
}

// BuildLayout computes the static frame geometry for one job
func BuildLayout(meta jobs.PodcastMeta, durationMs int) *Layout {
	w := float64(config.CanvasWidth)
	h := float64(config.CanvasHeight)
	margin := w * marginRatio

	l := &Layout{
		Width:       w,
		Height:      h,
		Margin:      margin,
		FPS:         config.FrameRate,
		DurationSec: float64(durationMs) / 1000.0,
		PodcastName: meta.PodcastName,
	}

	l.ArtworkSide = w - 2*margin
	l.ArtworkX = margin
	l.ArtworkY = h * artworkTopRatio
	l.ArtworkRadius = l.ArtworkSide * artworkCornerRatio

	l.NameY = l.ArtworkY + l.ArtworkSide + 84
	l.TitleLines = WrapTitle(meta.Title)
	l.TitleTopY = l.NameY + 72

	titleBottom := l.TitleTopY + float64(len(l.TitleLines))*titleLineHeight
	l.ProgressX = margin
	l.ProgressY = titleBottom + progressGap
	l.ProgressW = w - 2*margin

	l.CaptionCenterY = h * captionCenterRatio

	barsTotal := WatermarkBars*barWidth + (WatermarkBars-1)*barGap
	l.BarsX = (w - barsTotal) / 2
	l.BarsBaseline = h - margin

	return l
}

// FrameCount returns how many frames the clip needs at the target fps
func (l *Layout) FrameCount() int {
	return int(math.Round(float64(l.FPS) * l.DurationSec))
}

// FrameAt binds the per-frame values for frame i: elapsed time,
// progress fill, watermark bar heights and the caption visible at that
// instant.
func (l *Layout) FrameAt(i int, chunks []captions.Chunk) FrameSpec {
	t := float64(i) / float64(l.FPS)
	progress := 0.0
	if l.DurationSec > 0 {
		progress = math.Min(t/l.DurationSec, 1.0)
	}

	spec := FrameSpec{
		Index:         i,
		TimeSec:       t,
		Progress:      progress,
		ProgressFillW: progress * l.ProgressW,
		BarHeights:    BarHeights(i),
	}

	// Captions were built against the clipped audio, so frame time
	// compares clip-relative
	if chunk := ActiveChunk(chunks, int(t*1000)); chunk != nil {
		lines := captions.WrapLines(chunk.Text)
		if len(lines) > captions.MaxLines {
			lines = lines[:captions.MaxLines]
		}
		spec.CaptionLines = lines
	}
	return spec
}

// BarHeights computes the watermark bar heights for a frame. Each bar
// oscillates around the base height, phase-shifted by its index:
// base × (0.6 + 0.4·sin(0.1·i + 0.3·bar)).
func BarHeights(frameIndex int) [WatermarkBars]float64 {
	var heights [WatermarkBars]float64
	for bar := 0; bar < WatermarkBars; bar++ {
		heights[bar] = barBaseHeight * (0.6 + 0.4*math.Sin(0.1*float64(frameIndex)+0.3*float64(bar)))
	}
	return heights
}

// ActiveChunk returns the caption chunk whose visibility window
// contains tMs, or nil between chunks
func ActiveChunk(chunks []captions.Chunk, tMs int) *captions.Chunk {
	for i := range chunks {
		if chunks[i].StartMs <= tMs && tMs < chunks[i].EndMs {
			return &chunks[i]
		}
	}
	return nil
}

// WrapTitle wraps an episode title at TitleLineChars per line and caps
// it at two lines, ellipsizing the overflow
func WrapTitle(title string) []string {
	var lines []string
	var current strings.Builder
	words := strings.Fields(title)

	for i := 0; i < len(words); i++ {
		word := words[i]
		switch {
		case current.Len() == 0:
			current.WriteString(word)
		case current.Len()+1+len(word) <= TitleLineChars:
			current.WriteByte(' ')
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			if len(lines) == maxTitleLines {
				// Already full; drop the rest
				return ellipsize(lines)
			}
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	if len(lines) > maxTitleLines {
		return ellipsize(lines[:maxTitleLines])
	}
	return lines
}

func ellipsize(lines []string) []string {
	last := lines[len(lines)-1]
	if len(last) >= TitleLineChars-1 {
		last = strings.TrimSpace(last[:TitleLineChars-1])
	}
	lines[len(lines)-1] = last + "…"
	return lines
}
