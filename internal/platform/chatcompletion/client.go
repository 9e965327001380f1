package chatcompletion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/platform/metrics"
	"github.com/vaelis-ai/vaelis-api/internal/redact"
)

const (
	// AttemptTimeout bounds a single HTTP attempt.
	AttemptTimeout = 60 * time.Second

	// BaseBackoff is the delay after the first retryable failure. It doubles
	// after each further one.
	BaseBackoff = time.Second

	// MaxBackoff is the longest delay between two attempts.
	MaxBackoff = BaseBackoff << (generation.MaxRetriesLimit - 1)

	// maxErrorBody caps how much of an error response is kept for diagnostics.
	maxErrorBody = 512

	detailsCancelled = "request cancelled"
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the backoff sleep. Tests use it to observe delays.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithAttemptTimeout overrides AttemptTimeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) { c.attemptTimeout = d }
}

// Client calls a chat-completion endpoint with retries.
// It implements generation.Generator.
type Client struct {
	logger         *slog.Logger
	httpClient     *http.Client
	endpoint       string
	apiKey         string
	model          string
	temperature    float64
	maxRetries     int
	attemptTimeout time.Duration
	sleep          SleepFunc
}

var _ generation.Generator = (*Client)(nil)

// NewClient creates a Client from cfg. An empty cfg.APIKey is accepted; the
// client then answers every request with a service_unavailable result.
func NewClient(log *slog.Logger, cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIURL == "" {
		return nil, errors.New("api url cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("model cannot be empty")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = generation.DefaultMaxRetries
	}
	maxRetries = min(maxRetries, generation.MaxRetriesLimit)

	c := &Client{
		logger:         log,
		httpClient:     &http.Client{},
		endpoint:       strings.TrimRight(cfg.APIURL, "/") + "/chat/completions",
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxRetries:     maxRetries,
		attemptTimeout: AttemptTimeout,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate runs the attempt loop for req. It never returns nil and never
// panics; every failure is reported through the returned Result.
func (c *Client) Generate(ctx context.Context, req generation.Request) (result *generation.Result) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic during chat completion",
				"panic", redact.Secrets(fmt.Sprint(r), c.apiKey))
			result = generation.Failure(generation.KindUnknown, 0, "unexpected internal failure")
		}
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		metrics.ObserveResult(string(result.Status), string(result.Kind))
	}()

	if c.apiKey == "" {
		log.WarnContext(ctx, "chat completion requested but no API key is configured")
		return generation.Failure(generation.KindServiceUnavailable, 0, "no API key configured")
	}

	body, err := c.buildBody(req)
	if err != nil {
		log.ErrorContext(ctx, "failed to encode chat completion request", "error", err)
		return generation.Failure(generation.KindUnknown, 0, "failed to encode request")
	}

	maxRetries := c.maxRetries
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = min(*req.MaxRetries, generation.MaxRetriesLimit)
	}
	maxAttempts := maxRetries + 1

	var last attemptFailure
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return c.cancelled(ctx, log, attempt)
		}

		log.DebugContext(ctx, "calling chat completion endpoint",
			"attempt", attempt,
			"max_attempts", maxAttempts)

		payload, failure := c.attempt(ctx, body)
		if failure == nil {
			metrics.GenerationAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
			log.InfoContext(ctx, "chat completion succeeded", "attempt", attempt)
			return generation.Wrap(extractOutput(payload), req.Sources, payload)
		}

		if ctx.Err() != nil {
			return c.cancelled(ctx, log, attempt)
		}

		d := classify(*failure)
		metrics.GenerationAttempts.WithLabelValues(d.outcome()).Inc()
		last = *failure

		if !d.retry {
			log.WarnContext(ctx, "chat completion failed, not retrying",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"classification", d.kind,
				"status_code", failure.statusCode,
				"error", c.details(*failure))
			return generation.Failure(d.kind, failure.statusCode, c.details(*failure))
		}

		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt)
		log.InfoContext(ctx, "chat completion failed, retrying after delay",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"classification", d.kind,
			"status_code", failure.statusCode,
			"delay", delay.String(),
			"error", c.details(*failure))

		if err := c.sleep(ctx, delay); err != nil {
			return c.cancelled(ctx, log, attempt)
		}
	}

	log.ErrorContext(ctx, "chat completion failed after all attempts",
		"max_attempts", maxAttempts,
		"status_code", last.statusCode,
		"error", c.details(last))
	return generation.Failure(generation.KindServiceError, last.statusCode, c.details(last))
}

// attempt performs one HTTP round trip under its own timeout. It returns the
// decoded 2xx payload or a description of the failure.
func (c *Client) attempt(ctx context.Context, body []byte) (any, *attemptFailure) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &attemptFailure{err: fmt.Errorf("failed to build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		f := transportFailure(err)
		return nil, &f
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &attemptFailure{
			statusCode: resp.StatusCode,
			body:       strings.TrimSpace(string(snippet)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		f := transportFailure(err)
		return nil, &f
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &attemptFailure{err: fmt.Errorf("failed to decode response body: %w", err)}
	}
	return payload, nil
}

func (c *Client) buildBody(req generation.Request) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: generation.SystemMessage(req.Mode)},
			{Role: "user", Content: generation.EnrichPrompt(req.Prompt, req.Sources)},
		},
		Temperature: c.temperature,
	})
}

func (c *Client) cancelled(ctx context.Context, log *slog.Logger, attempt int) *generation.Result {
	metrics.GenerationAttempts.WithLabelValues(metrics.OutcomeCancelled).Inc()
	log.WarnContext(ctx, "chat completion cancelled by caller",
		"attempt", attempt,
		"ctx_err", ctx.Err())
	return generation.Failure(generation.KindServiceError, 0, detailsCancelled)
}

// details renders an operator diagnostic with credentials removed.
func (c *Client) details(f attemptFailure) string {
	var msg string
	switch {
	case f.statusCode != 0 && f.body != "":
		msg = fmt.Sprintf("upstream returned status %d: %s", f.statusCode, f.body)
	case f.statusCode != 0:
		msg = fmt.Sprintf("upstream returned status %d", f.statusCode)
	case f.timeout:
		msg = "upstream request timed out"
	case f.err != nil:
		msg = f.err.Error()
	default:
		msg = "unknown failure"
	}
	return redact.Secrets(msg, c.apiKey)
}

// backoffDelay is the wait after the given failed attempt: BaseBackoff
// doubled once per earlier retry, never more than MaxBackoff.
func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return BaseBackoff
	}
	if attempt-1 >= generation.MaxRetriesLimit-1 {
		return MaxBackoff
	}
	return BaseBackoff << (attempt - 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
