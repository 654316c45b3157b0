// Package ollama talks to an OpenAI-compatible chat completions endpoint,
// which is what a local Ollama server exposes under /v1.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/ai"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/utils"
)

const (
	DefaultURL   = "http://localhost:11434/v1"
	defaultModel = "llama3"
	// the caller's context carries the per-call deadline, this only guards against hangs
	clientTimeout = 5 * time.Minute
	temperature   = 0.1
)

type Client struct {
	api     *openai.Client
	baseURL string
	model   string
	retry   utils.RetryPolicy
	logger  *zap.Logger
}

type options struct {
	apiKey     string
	httpClient *http.Client
}

type Option func(*options)

// WithAPIKey sets the bearer token. Ollama ignores it, OpenAI-compatible proxies may not.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = strings.TrimSpace(key) }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds a client for baseURL (e.g. http://localhost:11434/v1).
func New(baseURL, model string, maxRetries int, log *zap.Logger, opts ...Option) *Client {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	o := options{httpClient: &http.Client{Timeout: clientTimeout}}
	for _, opt := range opts {
		opt(&o)
	}

	log = logger.WithCommonFields(log, ai.ProviderOllama, model)

	cfg := openai.DefaultConfig(o.apiKey)
	cfg.BaseURL = normalizeBaseURL(baseURL)
	cfg.HTTPClient = o.httpClient

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		baseURL: cfg.BaseURL,
		model:   model,
		logger:  log,
		retry: utils.RetryPolicy{
			Attempts:   maxRetries + 1,
			BaseDelay:  time.Second,
			Multiplier: 2,
			MaxDelay:   10 * time.Second,
			Retryable:  utils.IsTransient,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				log.Warn("inference request failed, retrying",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
			},
		},
	}
}

// normalizeBaseURL accepts both the /v1 root and a full chat completions URL.
func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return strings.TrimSuffix(baseURL, "/chat/completions")
}

func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends prompt as a single user message and returns the first choice.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", utils.NewFatalError(errors.New("prompt must not be empty"))
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	}

	return utils.Retry(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.complete(ctx, req)
	})
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	c.logger.Debug("make inference request", zap.String("url", c.baseURL))

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", utils.NewFatalError(errors.New("no choices in response"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", utils.NewFatalError(errors.New("empty completion"))
	}
	return content, nil
}

// classify maps go-openai errors onto the transient/fatal split.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return utils.ClassifyStatus(apiErr.HTTPStatusCode, fmt.Errorf("chat completion: %w", err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return utils.ClassifyStatus(reqErr.HTTPStatusCode,
			fmt.Errorf("bad status: %s: %s", reqErr.HTTPStatus, utils.TruncateForLog(string(reqErr.Body), 200)))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if utils.IsTransient(err) {
		return utils.NewTransientError(fmt.Errorf("chat completion: %w", err))
	}
	return utils.NewFatalError(fmt.Errorf("chat completion: %w", err))
}
