// Package matching estimates how well a posting fits the candidate profile.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
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

//go:embed match_prompt.md
var matchPromptTemplate string

const (
	MinScore = 1
	MaxScore = 10

	DefaultTimeout = 90 * time.Second

	// MinResumeLength is the resume size below which the model is not consulted.
	MinResumeLength = 100

	defaultMatchScore   = 5
	defaultMaxLogLength = 200
	maxResumeExcerpt    = 1000
	maxPromptDesc       = 600
	maxSkills           = 10
)

// Result is the outcome of matching one posting.
type Result struct {
	MatchScore     int      `json:"match_score"`
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Summary        string   `json:"match_summary"`
}

// Apply copies the result onto p.
func (r Result) Apply(p *jobs.Posting) {
	p.MatchScore = r.MatchScore
	p.MatchingSkills = r.MatchingSkills
	p.MissingSkills = r.MissingSkills
	p.MatchSummary = r.Summary
}

type Matcher struct {
	generator ai.Generator
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
}

// New returns a Matcher. A nil generator means skill overlap only.
func New(generator ai.Generator, log *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Matcher{
		generator: generator,
		logger:    logger.OrNop(log),
		timeout:   DefaultTimeout,
		maxLogLen: maxLogLength,
	}
}

// WithTimeout overrides the per-call inference deadline.
func (m *Matcher) WithTimeout(d time.Duration) *Matcher {
	if d > 0 {
		m.timeout = d
	}
	return m
}

// MatchJob scores p against profile. Like the relevance scorer it never
// fails; the skill overlap path covers every model problem.
func (m *Matcher) MatchJob(ctx context.Context, p *jobs.Posting, profile *jobs.Profile) Result {
	if profile == nil {
		profile = &jobs.Profile{}
	}

	if res, ok := m.matchWithModel(ctx, p, profile); ok {
		return res
	}
	return Fallback(p, profile)
}

func (m *Matcher) matchWithModel(ctx context.Context, p *jobs.Posting, profile *jobs.Profile) (Result, bool) {
	if m.generator == nil || utf8.RuneCountInString(strings.TrimSpace(profile.ResumeText)) <= MinResumeLength {
		return Result{}, false
	}

	prompt := BuildPrompt(p, profile)
	m.logger.Debug("match request",
		zap.String("title", p.Title),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		m.logger.Warn("match inference failed, using skill overlap",
			zap.String("title", p.Title),
			zap.Error(err),
		)
		return Result{}, false
	}

	m.logger.Debug("match response",
		zap.String("title", p.Title),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	res, err := ParseResult(raw)
	if err != nil {
		m.logger.Debug("unusable match response", zap.String("title", p.Title), zap.Error(err))
		return Result{}, false
	}
	return res, true
}

// ParseResult reads the first JSON object from a model answer. A missing
// match_score defaults to the middle of the scale.
func ParseResult(raw string) (Result, error) {
	payload := ai.ExtractJSON(raw)
	if payload == "" {
		return Result{}, fmt.Errorf("no JSON object in response")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return Result{}, fmt.Errorf("decoding match response: %w", err)
	}

	score := defaultMatchScore
	if f := ai.CoerceFloat(fields["match_score"]); !math.IsNaN(f) && !math.IsInf(f, 0) {
		score = int(math.Trunc(math.Max(math.Min(f, math.MaxInt32), math.MinInt32)))
	}

	return Result{
		MatchScore:     utils.Clamp(score, MinScore, MaxScore),
		MatchingSkills: capSkills(ai.CoerceStrings(fields["matching_skills"])),
		MissingSkills:  capSkills(ai.CoerceStrings(fields["missing_skills"])),
		Summary:        ai.CoerceString(fields["match_summary"]),
	}, nil
}

// Fallback computes the deterministic skill overlap result.
func Fallback(p *jobs.Posting, profile *jobs.Profile) Result {
	jobSkills := JobSkills(p)
	if len(jobSkills) == 0 {
		return Result{
			MatchScore: defaultMatchScore,
			Summary:    "No specific skills identified in job posting",
		}
	}

	var matching, missing []string
	for _, s := range jobSkills {
		if profile != nil && profile.HasSkill(s) {
			matching = append(matching, s)
		} else {
			missing = append(missing, s)
		}
	}

	return Result{
		MatchScore:     OverlapScore(len(matching), len(jobSkills)),
		MatchingSkills: capSkills(matching),
		MissingSkills:  capSkills(missing),
		Summary:        fmt.Sprintf("Matched %d/%d required skills", len(matching), len(jobSkills)),
	}
}

// OverlapScore maps matched/total to [1,10]. It is non-decreasing in matched.
func OverlapScore(matched, total int) int {
	if total <= 0 {
		return defaultMatchScore
	}
	ratio := float64(matched) / float64(total)
	return utils.Clamp(int(math.Floor(ratio*10))+2, MinScore, MaxScore)
}

// JobSkills returns dictionary skills from the title and description merged
// with the posting's explicit skill tags.
func JobSkills(p *jobs.Posting) []string {
	found := ExtractSkills(p.Title + " " + p.Description)
	seen := make(map[string]struct{}, len(found)+len(p.Skills))
	out := make([]string, 0, len(found)+len(p.Skills))
	for _, s := range append(found, p.Skills...) {
		s = normalizeSkill(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// BuildPrompt renders the match prompt.
func BuildPrompt(p *jobs.Posting, profile *jobs.Profile) string {
	desc := strings.TrimSpace(utils.Truncate(p.Description, maxPromptDesc))
	if desc == "" {
		desc = "No description available"
	}

	return strings.NewReplacer(
		"{{RESUME}}", utils.Truncate(profile.ResumeText, maxResumeExcerpt),
		"{{TITLE}}", p.Title,
		"{{COMPANY}}", p.Company,
		"{{DESCRIPTION}}", desc,
	).Replace(matchPromptTemplate)
}

func normalizeSkill(s string) string {
	s = strings.ReplaceAll(s, `\+\+`, "++")
	s = strings.ReplaceAll(s, `\`, "")
	return strings.ToLower(strings.TrimSpace(s))
}

func capSkills(skills []string) []string {
	out := make([]string, 0, min(len(skills), maxSkills))
	for _, s := range skills {
		if s = normalizeSkill(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxSkills {
			break
		}
	}
	return out
}
