package endpoints

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	proxyTimeout = 30 * time.Second

	// Fallback Retry-After when the provider rate-limits without one
	defaultRetryAfterSec = 30
)

// TranscriptProxy forwards the mobile client's on-device caption calls
// to the transcription provider using the server-held credential. The
// provider's JSON passes through verbatim; only credential failures,
// rate limits and outages are remapped so the client never sees the
// server's key being rejected as its own 401.
type TranscriptProxy struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTranscriptProxy creates a proxy for the given provider credential
// and API root. The limiter spaces calls across all clients to protect
// the shared credential from provider-side throttling.
func NewTranscriptProxy(apiKey, baseURL string) *TranscriptProxy {
	return &TranscriptProxy{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: proxyTimeout},
		limiter: rate.NewLimiter(rate.Limit(2), 5),
	}
}

// HandleCreate forwards a transcription request body as-is
// @Summary      Create a transcription (proxy)
// @Tags         transcript
// @Accept       json
// @Produce      json
// @Router       /transcript [post]
func (p *TranscriptProxy) HandleCreate(c *gin.Context) {
	p.forward(c, http.MethodPost, p.baseURL+"/transcript", c.Request.Body)
}

// HandleGet forwards a transcription status poll
// @Summary      Poll a transcription (proxy)
// @Tags         transcript
// @Produce      json
// @Param        id path string true "Transcript ID"
// @Router       /transcript/{id} [get]
func (p *TranscriptProxy) HandleGet(c *gin.Context) {
	p.forward(c, http.MethodGet, p.baseURL+"/transcript/"+url.PathEscape(c.Param("id")), nil)
}

func (p *TranscriptProxy) forward(c *gin.Context, method, target string, body io.Reader) {
	if p.apiKey == "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "transcription is not configured"})
		return
	}
	if !p.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":       false,
			"error":         "transcript proxy is rate limited",
			"retryAfterSec": 1,
		})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), method, target, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to build provider request"})
		return
	}
	req.Header.Set("authorization", p.apiKey)
	if method == http.MethodPost {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("Transcript proxy request failed", "method", method, "error", err)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "transcription provider unreachable"})
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The credential is ours, so its rejection is a server fault
		slog.Error("Transcription provider rejected server credentials", "status", resp.StatusCode)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "transcription provider rejected credentials"})
		return
	case resp.StatusCode == http.StatusTooManyRequests:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":       false,
			"error":         "transcription provider rate limited",
			"retryAfterSec": retryAfterSec(resp.Header.Get("Retry-After")),
		})
		return
	case resp.StatusCode >= 500:
		slog.Warn("Transcription provider error", "status", resp.StatusCode)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error: fmt.Sprintf("transcription provider unavailable: HTTP %d", resp.StatusCode),
		})
		return
	}

	// Remaining statuses pass through with the provider's own JSON
	c.DataFromReader(resp.StatusCode, resp.ContentLength, "application/json", resp.Body, nil)
}

func retryAfterSec(header string) int {
	if sec, err := strconv.Atoi(header); err == nil && sec > 0 {
		return sec
	}
	return defaultRetryAfterSec
}
