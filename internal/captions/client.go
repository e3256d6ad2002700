package captions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"clipcast/internal/jobs"
)

const uploadTimeout = 60 * time.Second

// Client talks to an AssemblyAI-compatible transcription API
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a provider client. baseURL is the versioned API
// root, e.g. https://api.assemblyai.com/v2.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Upload streams a local audio file to the provider and returns the
// provider-side URL for the uploaded blob
func (c *Client) Upload(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open clip for upload: %w", err)
	}
	defer file.Close()

	reqCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/upload", file)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("content-type", "application/octet-stream")

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", jobs.E(jobs.KindCaptionProvider, "upload response carried no upload_url")
	}
	return out.UploadURL, nil
}

// transcriptParams is the provider's transcription request body
type transcriptParams struct {
	AudioURL          string `json:"audio_url"`
	SpeakerLabels     bool   `json:"speaker_labels"`
	SpeakersExpected  int    `json:"speakers_expected,omitempty"`
	FormatText        bool   `json:"format_text"`
	Punctuate         bool   `json:"punctuate"`
	AutoHighlights    bool   `json:"auto_highlights,omitempty"`
	SentimentAnalysis bool   `json:"sentiment_analysis,omitempty"`
	EntityDetection   bool   `json:"entity_detection,omitempty"`
	IABCategories     bool   `json:"iab_categories,omitempty"`
}

// CreateTranscript starts a transcription of an uploaded blob. Smart
// flags request the insight models whose output is logged only.
func (c *Client) CreateTranscript(ctx context.Context, uploadURL string, smart bool) (*Transcript, error) {
	params := transcriptParams{
		AudioURL:         uploadURL,
		SpeakerLabels:    true,
		SpeakersExpected: 2,
		FormatText:       true,
		Punctuate:        true,
	}
	if smart {
		params.AutoHighlights = true
		params.SentimentAnalysis = true
		params.EntityDetection = true
		params.IABCategories = true
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build transcript request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("content-type", "application/json")

	var out Transcript
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTranscript fetches the current state of a transcription
func (c *Client) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)

	var out Transcript
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes a provider request and classifies failures: credential
// rejections are terminal, rate limits and 5xx are worth retrying,
// timeouts get their own kind so the poller can distinguish them.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return jobs.Wrap(jobs.KindCaptionTimeout, err, "provider request timed out")
		}
		return jobs.Wrap(jobs.KindCaptionProvider, err, "provider request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return jobs.E(jobs.KindCaptionAuth, "provider rejected credentials: HTTP %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return jobs.E(jobs.KindCaptionProvider, "provider rate limited: HTTP 429")
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return jobs.E(jobs.KindCaptionProvider, "provider returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return jobs.Wrap(jobs.KindCaptionProvider, err, "failed to decode provider response")
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
