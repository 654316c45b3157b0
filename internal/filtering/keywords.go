package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

// AIMLKeywords is the coarse recall set for AI/ML postings. Matching is a
// case-insensitive substring test, so the leading and trailing spaces matter.
var AIMLKeywords = []string{
	"machine learning", "ml engineer", "ml ", " ml", "artificial intelligence",
	"ai engineer", "ai ", " ai", "deep learning", "neural network", "nlp",
	"natural language", "computer vision", "data scientist", "data science",
	"tensorflow", "pytorch", "llm", "large language model", "generative ai",
	"gen ai", "mlops", "research scientist", "research engineer",
	"applied scientist", "ml platform",
}

// ContainsAny reports whether the lowercased text contains any keyword.
func ContainsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

type keywordsFilter struct {
	disabled  bool
	reason    string
	titleOnly bool
	keywords  []string
}

// NewKeywords creates the AI/ML pre-filter over title and description.
func NewKeywords() Filter {
	return &keywordsFilter{}
}

// NewTitleKeywords creates the pre-filter for sources without descriptions.
func NewTitleKeywords() Filter {
	return &keywordsFilter{titleOnly: true}
}

func (f *keywordsFilter) Name() string { return "keywords" }

func (f *keywordsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *keywordsFilter) IsEnabled() bool { return !f.disabled }

func (f *keywordsFilter) Validate(cfg *Config) error {
	f.keywords = AIMLKeywords
	if cfg != nil && len(cfg.Keywords) > 0 {
		f.keywords = cfg.Keywords
	}
	return nil
}

func (f *keywordsFilter) Apply(_ context.Context, deps Deps, postings []jobs.Posting) ([]jobs.Posting, Step, error) {
	initial := len(postings)
	left, dropped := keep(postings, func(p *jobs.Posting) bool {
		text := p.Title
		if !f.titleOnly {
			text += " " + p.Description
		}
		return ContainsAny(text, f.keywords)
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("excluding postings without AI/ML keywords",
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, Step{Initial: initial, Dropped: len(dropped), Left: len(left)}, nil
}

func (f *keywordsFilter) Status() Status {
	details := map[string]string{"title_only": "false"}
	if f.titleOnly {
		details["title_only"] = "true"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
