package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	_ "embed"

	"github.com/spigell/ml-job-radar/internal/ai"
	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/utils"

	"go.uber.org/zap"
)

//go:embed analyze_prompt.md
var analyzePromptTemplate string

const (
	maxAnalyzeResume = 2000

	NoResumeSummary = "No resume loaded. Add skills via USER_SKILLS in .env or create resume.txt"
)

// Analysis summarizes the candidate profile.
type Analysis struct {
	Skills          []string `json:"skills"`
	ExperienceYears int      `json:"experience_years,omitempty"`
	ExperienceLevel string   `json:"experience_level"`
	Domain          string   `json:"domain"`
	Summary         string   `json:"summary"`
}

// AnalyzeResume describes the profile. The model answer is used when the
// resume is present and the answer parses; profile skills are always kept.
func (m *Matcher) AnalyzeResume(ctx context.Context, profile *jobs.Profile) Analysis {
	if profile == nil {
		profile = &jobs.Profile{}
	}

	if strings.TrimSpace(profile.ResumeText) == "" {
		return Analysis{
			Skills:          profile.Skills,
			ExperienceLevel: "unknown",
			Domain:          "unknown",
			Summary:         NoResumeSummary,
		}
	}

	if m.generator != nil {
		a, err := m.analyzeWithModel(ctx, profile)
		if err == nil {
			return a
		}
		m.logger.Warn("resume analysis failed, using profile", zap.Error(err))
	}
	return fallbackAnalysis(profile)
}

func (m *Matcher) analyzeWithModel(ctx context.Context, profile *jobs.Profile) (Analysis, error) {
	prompt := strings.ReplaceAll(analyzePromptTemplate, "{{RESUME}}", utils.Truncate(profile.ResumeText, maxAnalyzeResume))

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		return Analysis{}, err
	}
	m.logger.Debug("analysis response", zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)))

	payload := ai.ExtractJSON(raw)
	if payload == "" {
		return Analysis{}, fmt.Errorf("no JSON object in response")
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return Analysis{}, fmt.Errorf("decoding analysis: %w", err)
	}

	merged := jobs.NewProfile("", profile.ExperienceLevel, profile.Skills, ai.CoerceStrings(fields["skills"]))

	a := Analysis{
		Skills:          merged.Skills,
		ExperienceLevel: strings.ToLower(ai.CoerceString(fields["experience_level"])),
		Domain:          ai.CoerceString(fields["domain"]),
		Summary:         ai.CoerceString(fields["summary"]),
	}
	if years := ai.CoerceFloat(fields["experience_years"]); !math.IsNaN(years) && years > 0 && years < 100 {
		a.ExperienceYears = int(years)
	}
	if a.ExperienceLevel == "" {
		a.ExperienceLevel = profile.ExperienceLevel
	}
	if a.Domain == "" {
		a.Domain = domainOf(a.Skills)
	}
	return a, nil
}

func fallbackAnalysis(profile *jobs.Profile) Analysis {
	level := profile.ExperienceLevel
	if level == "" {
		level = jobs.InferExperienceLevel(profile.ResumeText)
	}
	return Analysis{
		Skills:          profile.Skills,
		ExperienceLevel: level,
		Domain:          domainOf(profile.Skills),
		Summary:         fmt.Sprintf("Profile with %d identified skills.", len(profile.Skills)),
	}
}

func domainOf(skills []string) string {
	for _, s := range skills {
		if strings.Contains(s, "ml") || strings.Contains(s, "ai") || strings.Contains(s, "machine") {
			return "AI/ML"
		}
	}
	return "Tech"
}
