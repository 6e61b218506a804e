package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/eleven-am/kickflip/internal/metrics"
	"github.com/eleven-am/kickflip/internal/shared"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		timeout:    timeout,
		logger:     logger.With("component", "vision_client"),
	}
}

func (c *Client) Model() string {
	return c.model
}

// Analyze validates its inputs before any network traffic happens.
func (c *Client) Analyze(ctx context.Context, credential string, frames []string) (*Result, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", shared.ErrMissingInput)
	}
	if credential == "" {
		return nil, fmt.Errorf("%w: no credential", shared.ErrMissingInput)
	}
	return c.Complete(ctx, credential, BuildChatRequest(c.model, frames))
}

// Complete sends one chat completion request. It never retries.
func (c *Client) Complete(ctx context.Context, credential string, req ChatRequest) (*Result, error) {
	ctx, span := otel.Tracer("vision").Start(ctx, "Client.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("vision.model", req.Model),
		attribute.Int("vision.images", len(req.ImageURLs())),
	)

	result, err := c.complete(ctx, credential, req)
	if err != nil {
		span.RecordError(err)
		metrics.UpstreamRequestsTotal.WithLabelValues(shared.ErrorCode(err)).Inc()
		return nil, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (c *Client) complete(ctx context.Context, credential string, req ChatRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.classify(err)
	}

	c.logger.Debug("vision response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &shared.UpstreamError{StatusCode: resp.StatusCode, Body: raw}
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: response is not JSON", shared.ErrUpstream)
	}

	return &Result{Raw: raw, Verdict: extractVerdict(raw)}, nil
}

func (c *Client) classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: vision request exceeded %s", shared.ErrTimeout, c.timeout)
	}
	return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
}

func extractVerdict(raw []byte) string {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Choices) == 0 {
		return ""
	}
	if s, ok := resp.Choices[0].Message.Content.(string); ok {
		return s
	}
	return ""
}
