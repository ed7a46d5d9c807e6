/*
Package llm wraps the OpenAI API for the three model-backed collaborators:
troubleshooting analysis, voice transcription and image text extraction.

Calls are rate limited, retried with exponential backoff, and bounded by the
caller's context.
*/
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultChatModel is used for analysis and image reading.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTranscriptionModel is used for voice input.
	DefaultTranscriptionModel = openai.Whisper1
)

// ErrNoAPIKey is returned when the client is built without an API key.
var ErrNoAPIKey = errors.New("OpenAI API key is required")

// ClientConfig holds configuration for the OpenAI client.
type ClientConfig struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	MaxRetries         int
	RetryDelay         time.Duration
	RequestsPerMinute  int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:             apiKey,
		ChatModel:          DefaultChatModel,
		TranscriptionModel: DefaultTranscriptionModel,
		MaxRetries:         3,
		RetryDelay:         time.Second,
		RequestsPerMinute:  60,
	}
}

// Client wraps the OpenAI API client with retry and rate limiting.
type Client struct {
	client             *openai.Client
	chatModel          string
	transcriptionModel string
	maxRetries         int
	retryDelay         time.Duration
	limiter            *rate.Limiter
	logger             *zap.Logger
}

// NewClient creates a client from cfg. Zero values fall back to DefaultConfig.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	defaults := DefaultConfig(cfg.APIKey)
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaults.ChatModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = defaults.TranscriptionModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaults.RequestsPerMinute
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:             openai.NewClientWithConfig(apiConfig),
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
		maxRetries:         cfg.MaxRetries,
		retryDelay:         cfg.RetryDelay,
		limiter:            rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:             logger,
	}, nil
}

// complete sends a chat completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Model = c.chatModel

	var content string
	err := c.withRetry(ctx, "chat completion", func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	return content, err
}

// withRetry runs call until it succeeds, the retries are exhausted, or ctx ends.
func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.retryDelay, attempt)
			c.logger.Debug("retrying openai call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", op, ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limit wait: %w", op, err)
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			break
		}
	}
	return fmt.Errorf("%s failed: %w", op, lastErr)
}

// retryable reports whether an API error is worth retrying.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}
