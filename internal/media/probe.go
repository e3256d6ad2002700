package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProbeStream is one stream entry from ffprobe -show_streams
type ProbeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // "video" or "audio"
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"` // e.g. "12/1"
	Duration     string `json:"duration"`
}

// ProbeResult is the parsed ffprobe output for one media file
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe runs ffprobe on a local file and parses its JSON output
func Probe(ctx context.Context, ffprobePath, filePath string) (*ProbeResult, error) {
	res, err := Run(ctx, ffprobePath, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		filePath,
	})
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filePath, err)
	}

	var out ProbeResult
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return nil, fmt.Errorf("ffprobe parse: %w", err)
	}
	return &out, nil
}

// DurationSec returns the container duration, falling back to the
// longest stream duration when the format entry is missing
func (r *ProbeResult) DurationSec() float64 {
	if d, err := strconv.ParseFloat(r.Format.Duration, 64); err == nil && d > 0 {
		return d
	}
	var max float64
	for _, s := range r.Streams {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > max {
			max = d
		}
	}
	return max
}

// SizeBytes returns the container size reported by ffprobe
func (r *ProbeResult) SizeBytes() int64 {
	n, _ := strconv.ParseInt(r.Format.Size, 10, 64)
	return n
}

// CountStreams returns how many streams have the given codec type
func (r *ProbeResult) CountStreams(codecType string) int {
	n := 0
	for _, s := range r.Streams {
		if s.CodecType == codecType {
			n++
		}
	}
	return n
}

// FirstStream returns the first stream of the given type, or nil
func (r *ProbeResult) FirstStream(codecType string) *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == codecType {
			return &r.Streams[i]
		}
	}
	return nil
}
