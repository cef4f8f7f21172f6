package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/metrics"
)

// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

var (
	// ErrRateLimited matches any *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmptyResponse is returned when the provider answers without content.
	ErrEmptyResponse = errors.New("empty completion response")
	// ErrProvider wraps every other provider failure.
	ErrProvider = errors.New("language model provider error")
)

// RateLimitError reports an HTTP 429. RetryAfter is zero when the provider
// sent no Retry-After header.
type RateLimitError struct {
	Model      string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("model %s rate limited (retry after %s): %s", e.Model, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("model %s rate limited: %s", e.Model, e.Message)
}

// Is makes errors.Is(err, ErrRateLimited) true.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Config holds the client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
	Logger      *zap.Logger
}

// Client sends single-turn chat completions.
type Client struct {
	client      *openai.Client
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// New creates a client for an OpenAI-compatible endpoint, OpenRouter by default.
func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = retryAfterDoer{base: &http.Client{Timeout: timeout}}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Complete sends prompt to model and returns the trimmed answer text.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	slot := &retryAfterSlot{}
	ctx = context.WithValue(ctx, retryAfterKey{}, slot)

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		err = parseAPIError(model, err, slot.get())
		status := "error"
		if errors.Is(err, ErrRateLimited) {
			status = "rate_limited"
		}
		metrics.LLMRequestsTotal.WithLabelValues(model, status).Inc()
		c.logger.Debug("Completion failed", zap.String("model", model), zap.Duration("duration", duration), zap.Error(err))
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(model, "empty").Inc()
		return "", fmt.Errorf("model %s: %w", model, ErrEmptyResponse)
	}

	metrics.LLMRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.logger.Debug("Completion done",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// parseAPIError maps go-openai errors onto RateLimitError or ErrProvider.
func parseAPIError(model string, err error, retryAfter time.Duration) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractMessage(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Model: model, RetryAfter: retryAfter, Message: msg}
		}
		return fmt.Errorf("completion API error %d: %s: %w", reqErr.HTTPStatusCode, msg, ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Model: model, RetryAfter: retryAfter, Message: apiErr.Message}
		}
		return fmt.Errorf("completion API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}

	return fmt.Errorf("completion request failed: %v: %w", err, ErrProvider)
}

// extractMessage pulls "error.message" out of an OpenRouter error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Error.Message
	}
	return ""
}

type retryAfterKey struct{}

type retryAfterSlot struct {
	d time.Duration
}

func (s *retryAfterSlot) get() time.Duration {
	if s == nil {
		return 0
	}
	return s.d
}

// retryAfterDoer records the Retry-After header of a 429 into the request
// context, which go-openai does not expose on its error types.
type retryAfterDoer struct {
	base *http.Client
}

func (d retryAfterDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.base.Do(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if slot, ok := req.Context().Value(retryAfterKey{}).(*retryAfterSlot); ok {
		slot.d = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return resp, nil
}

// ParseRetryAfter reads a Retry-After value in seconds or HTTP-date form.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// StripCodeFence returns the body of the first ```json (or bare ```) fence
// in s, or s trimmed when there is none.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	for _, open := range []string{"```json", "```"} {
		i := strings.Index(s, open)
		if i < 0 {
			continue
		}
		rest := s[i+len(open):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return s
}
