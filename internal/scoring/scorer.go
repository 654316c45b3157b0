// Package scoring classifies how AI/ML-relevant a posting is, on a 1 to 10
// scale, using a text model with a keyword fallback.
package scoring

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/ml-job-radar/internal/ai"
	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/utils"

	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	MinScore = 1
	MaxScore = 10

	DefaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200
	maxPromptDesc       = 500
)

type Scorer struct {
	generator ai.Generator
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
}

// New returns a Scorer. A nil generator means keyword scoring only.
func New(generator ai.Generator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Scorer{
		generator: generator,
		logger:    logger.OrNop(log),
		timeout:   DefaultTimeout,
		maxLogLen: maxLogLength,
	}
}

// WithTimeout overrides the per-call inference deadline.
func (s *Scorer) WithTimeout(d time.Duration) *Scorer {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// ScoreRelevance returns a score in [1,10]. It never fails: inference errors,
// timeouts and unparsable answers fall back to keyword tiers.
func (s *Scorer) ScoreRelevance(ctx context.Context, p *jobs.Posting) int {
	if score, ok := s.scoreWithModel(ctx, p); ok {
		return score
	}

	score := utils.Clamp(KeywordScore(p.Text()), MinScore, MaxScore)
	s.logger.Debug("fallback relevance score",
		zap.String("title", p.Title),
		zap.Int("score", score),
	)
	return score
}

func (s *Scorer) scoreWithModel(ctx context.Context, p *jobs.Posting) (int, bool) {
	if s.generator == nil {
		return 0, false
	}

	prompt := BuildPrompt(p)

	s.logger.Debug("relevance request",
		zap.String("title", p.Title),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		s.logger.Warn("relevance inference failed, using keyword tiers",
			zap.String("title", p.Title),
			zap.Error(err),
		)
		return 0, false
	}

	s.logger.Debug("relevance response",
		zap.String("title", p.Title),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	score, strategy, ok := ParseScore(raw)
	if !ok {
		s.logger.Debug("no score in model response", zap.String("title", p.Title))
		return 0, false
	}

	clamped := utils.Clamp(score, MinScore, MaxScore)
	s.logger.Debug("model relevance score",
		zap.String("title", p.Title),
		zap.String("strategy", strategy),
		zap.Int("score", clamped),
	)
	return clamped, true
}

// BuildPrompt renders the relevance prompt for p.
func BuildPrompt(p *jobs.Posting) string {
	desc := strings.TrimSpace(utils.Truncate(p.Description, maxPromptDesc))
	if desc == "" {
		desc = "No description available"
	}

	return strings.NewReplacer(
		"{{TITLE}}", p.Title,
		"{{COMPANY}}", p.Company,
		"{{DESCRIPTION}}", desc,
	).Replace(promptTemplate)
}
