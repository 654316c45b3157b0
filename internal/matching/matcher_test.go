package matching

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spigell/ml-job-radar/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	response   string
	err        error
	calls      int
	lastPrompt string
	deadline   time.Duration
}

func (s *stubGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if d, ok := ctx.Deadline(); ok {
		s.deadline = time.Until(d)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

var longResume = strings.Repeat("Machine learning engineer building PyTorch models in production. ", 5)

func TestExtractSkills(t *testing.T) {
	t.Parallel()

	got := ExtractSkills("Senior Python engineer with PyTorch, C++ and SQL; k8s a plus")
	assert.Equal(t, []string{"python", "c++", "sql", "pytorch", "k8s"}, got)

	assert.Empty(t, ExtractSkills(""))
	assert.Empty(t, ExtractSkills("Office manager keeping things tidy"))
}

func TestExtractSkillsWordBoundaries(t *testing.T) {
	t.Parallel()

	skills := ExtractSkills("We use Django and Rust")
	assert.Contains(t, skills, "django")
	assert.Contains(t, skills, "rust")
	assert.NotContains(t, skills, "go", "go must not match inside django")
	assert.NotContains(t, skills, "r", "r must not match inside words")
}

func TestFallbackOverlap(t *testing.T) {
	t.Parallel()

	p := &jobs.Posting{Title: "ML Engineer", Description: "Python, PyTorch and Kubernetes."}
	profile := jobs.NewProfile("", "mid", []string{"Python", "docker"})

	res := Fallback(p, profile)
	assert.Equal(t, 5, res.MatchScore)
	assert.Equal(t, []string{"python"}, res.MatchingSkills)
	assert.Equal(t, []string{"pytorch", "kubernetes"}, res.MissingSkills)
	assert.Equal(t, "Matched 1/3 required skills", res.Summary)
}

func TestFallbackWithoutJobSkills(t *testing.T) {
	t.Parallel()

	p := &jobs.Posting{Title: "Office Manager", Description: "Keep things tidy."}
	res := Fallback(p, jobs.NewProfile("", "mid", []string{"python"}))
	assert.Equal(t, 5, res.MatchScore)
	assert.Empty(t, res.MatchingSkills)
	assert.Empty(t, res.MissingSkills)
}

func TestFallbackUsesExplicitSkills(t *testing.T) {
	t.Parallel()

	p := &jobs.Posting{Title: "Engineer", Skills: []string{"Airflow", "dbt"}}
	res := Fallback(p, jobs.NewProfile("", "mid", []string{"airflow", "dbt"}))
	assert.Equal(t, 10, res.MatchScore)
	assert.Equal(t, []string{"airflow", "dbt"}, res.MatchingSkills)
}

func TestOverlapScoreIsMonotonic(t *testing.T) {
	t.Parallel()

	for total := 1; total <= 25; total++ {
		prev := 0
		for matched := 0; matched <= total; matched++ {
			score := OverlapScore(matched, total)
			if score < prev {
				t.Fatalf("score decreased for %d/%d: %d < %d", matched, total, score, prev)
			}
			if score < MinScore || score > MaxScore {
				t.Fatalf("score %d out of range for %d/%d", score, matched, total)
			}
			prev = score
		}
	}
	assert.Equal(t, 5, OverlapScore(0, 0))
	assert.Equal(t, 2, OverlapScore(0, 4))
	assert.Equal(t, 10, OverlapScore(4, 4))
}

func TestMatchJobUsesModel(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: "Sure!\n{\"match_score\": 8, \"matching_skills\": [\"Python\"], \"missing_skills\": [\"Rust\"], \"match_summary\": \"good fit\"}"}
	m := New(gen, zap.NewNop(), 0)
	profile := jobs.NewProfile(longResume, "", []string{"python"})
	p := &jobs.Posting{Title: "ML Engineer", Company: "Acme", Description: "Build models."}

	res := m.MatchJob(context.Background(), p, profile)
	assert.Equal(t, 8, res.MatchScore)
	assert.Equal(t, []string{"python"}, res.MatchingSkills)
	assert.Equal(t, []string{"rust"}, res.MissingSkills)
	assert.Equal(t, "good fit", res.Summary)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.lastPrompt, "- Title: ML Engineer")
	assert.Contains(t, gen.lastPrompt, "- Company: Acme")
	if gen.deadline <= 0 || gen.deadline > DefaultTimeout {
		t.Fatalf("unexpected deadline %v", gen.deadline)
	}
}

func TestMatchJobSkipsModelForShortResume(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: `{"match_score": 9}`}
	m := New(gen, nil, 0)
	profile := jobs.NewProfile("short resume", "", []string{"python"})

	res := m.MatchJob(context.Background(), &jobs.Posting{Title: "Python developer"}, profile)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 10, res.MatchScore)
}

func TestMatchJobFallsBack(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		gen  *stubGenerator
	}{
		{name: "inference error", gen: &stubGenerator{err: errors.New("connection refused")}},
		{name: "no json", gen: &stubGenerator{response: "I think it is a decent match"}},
		{name: "broken json", gen: &stubGenerator{response: `{"match_score": 7, "matching_skills": [}`}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := New(tc.gen, zap.NewNop(), 0)
			profile := jobs.NewProfile(longResume, "", []string{"python"})
			p := &jobs.Posting{Title: "Data Scientist", Description: "python and sql"}

			res := m.MatchJob(context.Background(), p, profile)
			assert.Equal(t, 1, tc.gen.calls)
			assert.Equal(t, "Matched 1/2 required skills", res.Summary)
			assert.Equal(t, 7, res.MatchScore)
		})
	}
}

func TestParseResult(t *testing.T) {
	t.Parallel()

	res, err := ParseResult(`{"matching_skills": "python, sql"}`)
	require.NoError(t, err)
	assert.Equal(t, 5, res.MatchScore, "missing score defaults to 5")
	assert.Equal(t, []string{"python", "sql"}, res.MatchingSkills)

	res, err = ParseResult(`{"match_score": 42}`)
	require.NoError(t, err)
	assert.Equal(t, 10, res.MatchScore)

	res, err = ParseResult(`{"match_score": 7.8}`)
	require.NoError(t, err)
	assert.Equal(t, 7, res.MatchScore, "fractional scores are truncated")

	res, err = ParseResult(`{"match_score": "-3"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchScore)

	many := `{"match_score": 6, "missing_skills": ["a","b","c","d","e","f","g","h","i","j","k","l"]}`
	res, err = ParseResult(many)
	require.NoError(t, err)
	assert.Len(t, res.MissingSkills, 10)

	_, err = ParseResult("nothing here")
	assert.Error(t, err)
}

func TestResultApply(t *testing.T) {
	t.Parallel()

	var p jobs.Posting
	Result{MatchScore: 6, MatchingSkills: []string{"go"}, MissingSkills: []string{"jax"}, Summary: "ok"}.Apply(&p)
	assert.Equal(t, 6, p.MatchScore)
	assert.Equal(t, []string{"go"}, p.MatchingSkills)
	assert.Equal(t, []string{"jax"}, p.MissingSkills)
	assert.Equal(t, "ok", p.MatchSummary)
}

func TestBuildPromptTruncates(t *testing.T) {
	t.Parallel()

	profile := &jobs.Profile{ResumeText: strings.Repeat("r", 1500)}
	p := &jobs.Posting{Title: "T", Company: "C", Description: strings.Repeat("d", 900)}

	prompt := BuildPrompt(p, profile)
	assert.Contains(t, prompt, strings.Repeat("r", 1000)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("r", 1001))
	assert.Contains(t, prompt, "- Description: "+strings.Repeat("d", 600)+"\n")
}

func TestBuildProfileAddsResumeSkills(t *testing.T) {
	t.Parallel()

	profile := BuildProfile("Worked 6 years with TensorFlow and Airflow", "", []string{"Go"})
	assert.Equal(t, []string{"airflow", "go", "tensorflow"}, profile.Skills)
	assert.Equal(t, "senior", profile.ExperienceLevel)
}
