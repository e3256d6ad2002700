package renderer

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	artworkTimeout   = 10 * time.Second
	maxArtworkBytes  = 20 << 20
	placeholderColor = "#1D2B53"
)

// FetchArtwork downloads and prepares the podcast artwork: center-crop
// to a square of the layout's artwork size with rounded corners. On
// any failure a deterministic placeholder is returned instead, because
// a missing cover must not fail the job.
func (r *Renderer) FetchArtwork(ctx context.Context, artworkURL string, l *Layout) image.Image {
	side := int(l.ArtworkSide)

	img, err := r.fetchImage(ctx, artworkURL)
	if err != nil {
		slog.Warn("Artwork fetch failed, using placeholder", "url", artworkURL, "error", err)
		return placeholderArtwork(side, l.ArtworkRadius, l.PodcastName, r)
	}

	squared := imaging.Fill(img, side, side, imaging.Center, imaging.Lanczos)
	return roundCorners(squared, l.ArtworkRadius)
}

func (r *Renderer) fetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	reqCtx, cancel := context.WithTimeout(ctx, artworkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid artwork url: %w", err)
	}

	resp, err := r.artworkClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artwork download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork returned HTTP %d", resp.StatusCode)
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, fmt.Errorf("artwork decode failed: %w", err)
	}
	return img, nil
}

// roundCorners clips an image to a rounded rectangle
func roundCorners(img image.Image, radius float64) image.Image {
	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawRoundedRectangle(0, 0, float64(b.Dx()), float64(b.Dy()), radius)
	dc.Clip()
	dc.DrawImage(img, 0, 0)
	return dc.Image()
}

// placeholderArtwork renders a flat rounded square with the show's
// initial, deterministic for a given name and size
func placeholderArtwork(side int, radius float64, podcastName string, r *Renderer) image.Image {
	dc := gg.NewContext(side, side)
	dc.DrawRoundedRectangle(0, 0, float64(side), float64(side), radius)
	dc.SetHexColor(placeholderColor)
	dc.Fill()

	initial := "?"
	if trimmed := strings.TrimSpace(podcastName); trimmed != "" {
		initial = strings.ToUpper(string([]rune(trimmed)[0]))
	}

	dc.SetFontFace(r.face(r.fontBold, float64(side)*0.4))
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(initial, float64(side)/2, float64(side)/2, 0.5, 0.5)
	return dc.Image()
}
