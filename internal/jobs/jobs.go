package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a video job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CaptionStyle selects the text transform applied to rendered captions
type CaptionStyle string

const (
	StyleNormal    CaptionStyle = "normal"
	StyleUppercase CaptionStyle = "uppercase"
	StyleLowercase CaptionStyle = "lowercase"
	StyleTitle     CaptionStyle = "title"
)

// ValidStyle reports whether s is a recognized caption style. The empty
// string is accepted and treated as StyleNormal downstream.
func ValidStyle(s CaptionStyle) bool {
	switch s {
	case "", StyleNormal, StyleUppercase, StyleLowercase, StyleTitle:
		return true
	}
	return false
}

// PodcastMeta describes the episode being clipped
type PodcastMeta struct {
	Title       string `json:"title"`       // episode title
	ArtworkURL  string `json:"artwork"`     // square artwork image
	PodcastName string `json:"podcastName"` // show name
}

// VideoRequest is the immutable submission payload for one clip
type VideoRequest struct {
	AudioURL            string       `json:"audioUrl"`
	ClipStartMs         int          `json:"clipStart"`
	ClipEndMs           int          `json:"clipEnd"`
	Podcast             PodcastMeta  `json:"podcast"`
	CaptionsEnabled     bool         `json:"captionsEnabled"`
	CaptionStyle        CaptionStyle `json:"captionStyle,omitempty"`
	DeviceToken         string       `json:"deviceToken,omitempty"`
	EnableSmartFeatures bool         `json:"enableSmartFeatures,omitempty"`
}

// ClipDurationMs returns the requested clip length in milliseconds
func (r *VideoRequest) ClipDurationMs() int {
	return r.ClipEndMs - r.ClipStartMs
}

// ClipDuration returns the requested clip length as a time.Duration
func (r *VideoRequest) ClipDuration() time.Duration {
	return time.Duration(r.ClipDurationMs()) * time.Millisecond
}

// CostBreakdown itemizes the realized cost of one completed job in USD
type CostBreakdown struct {
	Download    float64 `json:"download"`
	Captions    float64 `json:"captions"`
	Frames      float64 `json:"frames"`
	Composition float64 `json:"composition"`
	Storage     float64 `json:"storage"`
	Total       float64 `json:"total"`
}

// Sum recomputes Total from the itemized stages
func (c *CostBreakdown) Sum() float64 {
	c.Total = c.Download + c.Captions + c.Frames + c.Composition + c.Storage
	return c.Total
}

// Result holds the output of a completed job
type Result struct {
	VideoURL         string        `json:"videoUrl"`
	DownloadURL      string        `json:"downloadUrl"`
	FileSizeBytes    int64         `json:"fileSizeBytes"`
	DurationSec      float64       `json:"durationSec"`
	ProcessingTimeMs int64         `json:"processingTimeMs"`
	CostBreakdown    CostBreakdown `json:"costBreakdown"`
}

// Job is the central record tracked from admission to completion.
// It is mutated only by the scheduler and the worker that owns it.
type Job struct {
	ID               string       `json:"jobId"`
	Status           Status       `json:"status"`
	Request          VideoRequest `json:"request"`
	EstimatedCost    float64      `json:"estimatedCost"`
	EstimatedTimeSec int          `json:"estimatedTime"`
	CreatedAt        time.Time    `json:"createdAt"`
	StartedAt        *time.Time   `json:"startedAt,omitempty"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
	FailedAt         *time.Time   `json:"failedAt,omitempty"`
	Retries          int          `json:"retries"`
	MaxRetries       int          `json:"maxRetries"`
	Result           *Result      `json:"result,omitempty"`
	Error            string       `json:"error,omitempty"`
	Warning          string       `json:"warning,omitempty"` // e.g. captions degraded
}

// NewJobID returns a short collision-resistant identifier
func NewJobID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// NewJob builds a queued job for the given request
func NewJob(req VideoRequest, estimatedCost float64, estimatedTimeSec, maxRetries int) *Job {
	return &Job{
		ID:               NewJobID(),
		Status:           StatusQueued,
		Request:          req,
		EstimatedCost:    estimatedCost,
		EstimatedTimeSec: estimatedTimeSec,
		CreatedAt:        time.Now().UTC(),
		MaxRetries:       maxRetries,
	}
}

// Clone returns a deep copy safe to hand to concurrent readers
func (j *Job) Clone() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.FailedAt != nil {
		t := *j.FailedAt
		cp.FailedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	return &cp
}

// Terminal reports whether the job has reached a final state
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

func (j *Job) String() string {
	return fmt.Sprintf("job %s [%s] clip=%dms", j.ID, j.Status, j.Request.ClipDurationMs())
}
