package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/ml-job-radar/internal/ai"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/utils"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"
)

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    contentModels
	modelName string
	retry     utils.RetryPolicy
	logger    *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model, maxRetries, log), nil
}

func newGenerator(models contentModels, model string, maxRetries int, log *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	log = logger.WithCommonFields(log, ai.ProviderGemini, model)

	policy := utils.RetryPolicy{
		Attempts:   maxRetries + 1,
		BaseDelay:  2 * time.Second,
		Multiplier: 2,
		MaxDelay:   30 * time.Second,
		Jitter:     0.2,
		Retryable:  utils.IsTransient,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warn("gemini request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}

	return &Generator{models: models, modelName: model, retry: policy, logger: log}
}

// GenerateContent sends the prompt to Gemini and returns the joined textual response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", utils.NewFatalError(errors.New("gemini generator is not initialized"))
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", utils.NewFatalError(errors.New("prompt must not be empty"))
	}

	return utils.Retry(ctx, g.retry, func(ctx context.Context) (string, error) {
		return g.generateContent(ctx, prompt)
	})
}

func (g *Generator) generateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", utils.NewTransientError(fmt.Errorf("generate content: %w", err))
	}
	if resp == nil {
		return "", utils.NewTransientError(errors.New("gemini api returned no response"))
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", utils.NewFatalError(errors.New("gemini api returned empty response"))
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
