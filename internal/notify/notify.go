// Package notify delivers best-effort notifications: a push to the
// submitting device on completion and operator chat messages at job
// milestones. Deliveries are never retried and never fail a job.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"clipcast/internal/config"
	"clipcast/internal/jobs"
)

const (
	notifyTimeout = 10 * time.Second
	telegramAPI   = "https://api.telegram.org"
)

// Notifier fans job milestones out to the push service and the
// operator chat. All methods are safe with a zero-value configuration;
// unconfigured channels are skipped.
type Notifier struct {
	pushURL  string
	tgBase   string
	botToken string
	chatID   string
	chatOn   bool
	client   *http.Client
}

// New creates a notifier from the environment configuration
func New() *Notifier {
	return &Notifier{
		pushURL:  config.ExpoPushURL,
		tgBase:   telegramAPI,
		botToken: config.TelegramBotToken,
		chatID:   config.TelegramChatID,
		chatOn:   config.EnableTelegramNotif,
		client:   &http.Client{Timeout: notifyTimeout},
	}
}

// NewWithClient creates a notifier with explicit endpoints and client.
// Test hook.
func NewWithClient(pushURL, tgBase, botToken, chatID string, client *http.Client) *Notifier {
	return &Notifier{
		pushURL:  pushURL,
		tgBase:   tgBase,
		botToken: botToken,
		chatID:   chatID,
		chatOn:   botToken != "" && chatID != "",
		client:   client,
	}
}

type pushMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// PushCompleted tells the submitting device its clip is ready. Skipped
// when the job carries no device token.
func (n *Notifier) PushCompleted(ctx context.Context, job *jobs.Job) {
	if n.pushURL == "" || job.Request.DeviceToken == "" || job.Result == nil {
		return
	}

	msg := pushMessage{
		To:    job.Request.DeviceToken,
		Title: "Your clip is ready",
		Body:  fmt.Sprintf("%s: %s", job.Request.Podcast.PodcastName, job.Request.Podcast.Title),
		Sound: "default",
		Data: map[string]any{
			"type":     "video_ready",
			"jobId":    job.ID,
			"videoUrl": job.Result.VideoURL,
		},
	}

	if err := n.postJSON(ctx, n.pushURL, msg); err != nil {
		slog.Warn("Push notification failed", "job_id", job.ID, "error", err)
		return
	}
	slog.Info("Push notification sent", "job_id", job.ID)
}

// ChatJobStarted posts a start summary to the operator chat
func (n *Notifier) ChatJobStarted(ctx context.Context, job *jobs.Job) {
	n.chat(ctx, job.ID, fmt.Sprintf(
		"Job %s started: %q (%s), %.0fs clip, est cost $%.4f",
		job.ID, job.Request.Podcast.Title, job.Request.Podcast.PodcastName,
		job.Request.ClipDuration().Seconds(), job.EstimatedCost))
}

// ChatJobCompleted posts a completion summary with estimated versus
// realized cost
func (n *Notifier) ChatJobCompleted(ctx context.Context, job *jobs.Job) {
	if job.Result == nil {
		return
	}
	n.chat(ctx, job.ID, fmt.Sprintf(
		"Job %s completed in %.1fs: est $%.4f, realized $%.4f, %.1fMB",
		job.ID, float64(job.Result.ProcessingTimeMs)/1000.0,
		job.EstimatedCost, job.Result.CostBreakdown.Sum(),
		float64(job.Result.FileSizeBytes)/(1024*1024)))
}

// ChatJobFailed posts a failure summary
func (n *Notifier) ChatJobFailed(ctx context.Context, job *jobs.Job) {
	n.chat(ctx, job.ID, fmt.Sprintf(
		"Job %s failed after %d retries: %s",
		job.ID, job.Retries, job.Error))
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (n *Notifier) chat(ctx context.Context, jobID, text string) {
	if !n.chatOn || n.botToken == "" || n.chatID == "" {
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.tgBase, n.botToken)
	if err := n.postJSON(ctx, url, telegramMessage{ChatID: n.chatID, Text: text}); err != nil {
		slog.Warn("Chat notification failed", "job_id", jobID, "error", err)
	}
}

func (n *Notifier) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
