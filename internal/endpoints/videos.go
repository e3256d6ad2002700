package endpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"clipcast/internal/jobs"
	"clipcast/internal/scheduler"
	"clipcast/internal/storage"

	"github.com/gin-gonic/gin"
)

// Scheduler defines the admission and status operations the video
// handlers consume
type Scheduler interface {
	Submit(ctx context.Context, req jobs.VideoRequest) (*scheduler.Receipt, error)
	GetStatus(ctx context.Context, jobID string) (*scheduler.StatusView, error)
}

// CreateVideoResponse is the receipt returned for an admitted job
type CreateVideoResponse struct {
	Success       bool   `json:"success"`
	JobID         string `json:"jobId"`
	EstimatedTime int    `json:"estimatedTime"`
	Message       string `json:"message"`
}

// ErrorResponse is the error shape shared by all non-2xx API responses
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// HandleCreateVideo returns a handler that admits a clip request into
// the job queue and responds with the job receipt
// @Summary      Submit a clip for rendering
// @Description  Queue a podcast clip for server-side video rendering
// @Tags         videos
// @Accept       json
// @Produce      json
// @Success      200  {object}  CreateVideoResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Router       /create-video [post]
func HandleCreateVideo(sched Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req jobs.VideoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("invalid request body: %v", err),
				Code:  string(jobs.KindInvalidRequest),
			})
			return
		}

		receipt, err := sched.Submit(c.Request.Context(), req)
		if err != nil {
			kind := jobs.KindOf(err)
			c.JSON(admissionStatus(kind), ErrorResponse{
				Error: err.Error(),
				Code:  string(kind),
			})
			return
		}

		c.JSON(http.StatusOK, CreateVideoResponse{
			Success:       true,
			JobID:         receipt.JobID,
			EstimatedTime: receipt.EstimatedTimeSec,
			Message: fmt.Sprintf("Video queued at position %d, estimated %ds",
				receipt.QueuePosition, receipt.EstimatedTimeSec),
		})
	}
}

// admissionStatus maps admission error kinds onto HTTP statuses
func admissionStatus(kind jobs.Kind) int {
	switch kind {
	case jobs.KindInvalidRequest:
		return http.StatusBadRequest
	case jobs.KindFeatureDisabled:
		return http.StatusForbidden
	case jobs.KindQueueFull, jobs.KindBudgetExceeded:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// VideoStatusResponse is the stored job record widened with live queue
// state
type VideoStatusResponse struct {
	*jobs.Job
	QueuePosition int `json:"queuePosition"`
	ActiveJobs    int `json:"activeJobs"`
}

// HandleVideoStatus returns a handler for the client's status poll
// @Summary      Get job status
// @Description  Full job record plus queue position and active worker count
// @Tags         videos
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200  {object}  VideoStatusResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /video-status/{jobId} [get]
func HandleVideoStatus(sched Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")
		view, err := sched.GetStatus(c.Request.Context(), jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
				return
			}
			slog.Error("Status lookup failed", "job_id", jobID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load job"})
			return
		}

		c.JSON(http.StatusOK, VideoStatusResponse{
			Job:           view.Job,
			QueuePosition: view.QueuePosition,
			ActiveJobs:    view.ActiveJobs,
		})
	}
}

// HandleDownloadVideo returns a handler that streams a finished MP4.
// Anything short of a completed job with its bytes still in storage is
// a 404: not-yet-finished, failed and expired all look the same to the
// client.
// @Summary      Download a finished video
// @Tags         videos
// @Produce      video/mp4
// @Param        jobId path string true "Job ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  ErrorResponse
// @Router       /download-video/{jobId} [get]
func HandleDownloadVideo(store jobs.Store, videos storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")
		job, err := store.Get(c.Request.Context(), jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
				return
			}
			slog.Error("Download lookup failed", "job_id", jobID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load job"})
			return
		}
		if job.Status != jobs.StatusCompleted {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: fmt.Sprintf("video not available: job is %s", job.Status),
			})
			return
		}

		name := storage.VideoName(jobID)
		reader, size, err := videos.Open(c.Request.Context(), name)
		if err != nil {
			slog.Warn("Stored video missing", "job_id", jobID, "name", name, "error", err)
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "video expired or no longer available"})
			return
		}
		defer reader.Close()

		c.DataFromReader(http.StatusOK, size, "video/mp4", reader, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		})
	}
}
