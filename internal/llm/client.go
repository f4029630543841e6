package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Message is one chat turn sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the wire format shared by every supported provider.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

const bodyLogLimit = 500

// Client sends chat-completion requests to a configured backend, retrying
// timeouts with exponential backoff and failing fast on everything else.
type Client struct {
	backend        Backend
	baseURL        string
	model          string
	temperature    float64
	maxTokens      int
	topP           float64
	httpClient     *http.Client
	requestTimeout time.Duration
	maxRetries     int
	retryDelay     time.Duration
	backoffFactor  float64
	limiter        *rate.Limiter
	logger         *slog.Logger
}

type Option func(*Client)

// WithRequestTimeout bounds a single attempt; a timeout here is the only
// failure that gets retried.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithRetry configures the backoff schedule: the wait before retry k is
// delay * factor^(k-1).
func WithRetry(maxRetries int, delay time.Duration, factor float64) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
		c.backoffFactor = factor
	}
}

func WithRateLimit(requestsPerMinute, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithSampling(temperature float64, maxTokens int, topP float64) Option {
	return func(c *Client) {
		c.temperature = temperature
		c.maxTokens = maxTokens
		c.topP = topP
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "llm_client")
	}
}

func NewClient(backend Backend, baseURL, model string, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 15,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		requestTimeout: 30 * time.Second,
		maxRetries:     3,
		retryDelay:     2 * time.Second,
		backoffFactor:  1.5,
		temperature:    0.7,
		maxTokens:      8192,
		topP:           0.1,
		limiter:        rate.NewLimiter(rate.Limit(1), 1),
		logger:         slog.Default().With("component", "llm_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("llm client initialized",
		"backend", backend.Name(),
		"base_url", baseURL,
		"model", model,
		"max_retries", c.maxRetries,
		"request_timeout", c.requestTimeout)

	return c
}

// Chat sends one conversation to the backend and returns the assistant reply
// text. Request timeouts are retried up to the configured maximum; every
// other failure is surfaced immediately as a fatal *TransportError.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	requestID := uuid.NewString()
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	attempt := 0
	reply, err := retry.DoWithData(
		func() (string, error) {
			attempt++
			c.logger.Debug("sending chat request",
				"request_id", requestID,
				"attempt", attempt,
				"backend", c.backend.Name(),
				"model", c.model,
				"message_count", len(messages))
			return c.doRequest(ctx, messages)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			wait := time.Duration(float64(c.retryDelay) * math.Pow(c.backoffFactor, float64(n)))
			c.logger.Warn("request timed out, retrying",
				"request_id", requestID,
				"completed_attempts", n+1,
				"wait", wait)
			return wait
		}),
	)
	if err != nil {
		if IsTransient(err) {
			err = &TransportError{
				Kind: Fatal,
				Err:  fmt.Errorf("timeout after max retries (%d): %w", c.maxRetries, errors.Unwrap(err)),
			}
		}
		c.logger.Error("chat request failed",
			"request_id", requestID,
			"attempts", attempt,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", err)
		return "", err
	}

	c.logger.Info("chat request succeeded",
		"request_id", requestID,
		"attempts", attempt,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"reply_length", len(reply))

	return reply, nil
}

// doRequest performs exactly one attempt. The attempt context is scoped to
// this call so each retry gets a fresh timeout and releases its resources
// on every exit path.
func (c *Client) doRequest(ctx context.Context, messages []Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		TopP:        c.topP,
		Stream:      false,
	})
	if err != nil {
		return "", &TransportError{Kind: Fatal, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.backend.RequestURL(c.baseURL), bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Kind: Fatal, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	c.backend.ApplyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &TransportError{Kind: Transient, Err: fmt.Errorf("request timeout: %w", err)}
		}
		return "", &TransportError{Kind: Fatal, Err: fmt.Errorf("making request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", &TransportError{Kind: Transient, Err: fmt.Errorf("reading response: %w", err)}
		}
		return "", &TransportError{Kind: Fatal, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{
			Kind:   Fatal,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), bodyLogLimit)),
		}
	}

	reply, err := c.backend.ExtractReply(respBody)
	if err != nil {
		return "", &TransportError{Kind: Fatal, Err: err}
	}
	return reply, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
