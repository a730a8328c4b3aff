package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/prooftamil/ime-gateway/internal/reqctx"
)

const (
	transliteratePath = "/api/v1/transliterate"
	maxResponseBytes  = 1 << 20
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxRPS caps outbound calls per second across all callers. Zero disables
// the cap.
func WithMaxRPS(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client calls a transliterator runner service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a runner client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runnerRequest struct {
	Text  string `json:"text"`
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
}

type runnerResult struct {
	Word  string  `json:"word"`
	Ta    string  `json:"ta"`
	Score float64 `json:"score"`
}

// runnerResponse accepts both the ranked "results" form and the bare
// "outputs" list emitted by single-script runners.
type runnerResponse struct {
	Results []runnerResult `json:"results"`
	Outputs []string       `json:"outputs"`
}

// Transliterate implements Engine.
func (c *Client) Transliterate(ctx context.Context, text, mode string, limit int) ([]Candidate, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
	}

	body, err := json.Marshal(runnerRequest{Text: text, Mode: mode, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + transliteratePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if rid := reqctx.RequestID(ctx); rid != "" {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	latency := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("transliterator error",
			slog.String("request_id", reqctx.RequestID(ctx)),
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", latency))
		return nil, fmt.Errorf("transliterator error (status %d)", resp.StatusCode)
	}

	var decoded runnerResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	c.logger.Debug("transliterator ok",
		slog.String("request_id", reqctx.RequestID(ctx)),
		slog.Duration("latency", latency))

	return decoded.candidates(), nil
}

func (r runnerResponse) candidates() []Candidate {
	if len(r.Results) > 0 {
		out := make([]Candidate, 0, len(r.Results))
		for _, res := range r.Results {
			out = append(out, Candidate{Word: res.Word, Tamil: res.Ta, Score: res.Score})
		}
		return out
	}

	out := make([]Candidate, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		out = append(out, Candidate{Word: o})
	}
	return out
}
