package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/ml-job-radar/internal/jobs"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeResumeWithoutResume(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: `{"skills": ["x"]}`}
	a := New(gen, nil, 0).AnalyzeResume(context.Background(), jobs.NewProfile("", "", []string{"python"}))

	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, []string{"python"}, a.Skills)
	assert.Equal(t, "unknown", a.ExperienceLevel)
	assert.Equal(t, "unknown", a.Domain)
	assert.Equal(t, NoResumeSummary, a.Summary)
}

func TestAnalyzeResumeWithModel(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: "```json\n" + `{
  "skills": ["PyTorch", "Python"],
  "experience_years": 6,
  "experience_level": "Senior",
  "domain": "ML/AI",
  "summary": "Builds models.",
}` + "\n```"}
	profile := jobs.NewProfile(longResume, "", []string{"docker"})

	a := New(gen, nil, 0).AnalyzeResume(context.Background(), profile)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.lastPrompt, "Machine learning engineer")
	assert.Equal(t, []string{"docker", "python", "pytorch"}, a.Skills)
	assert.Equal(t, 6, a.ExperienceYears)
	assert.Equal(t, "senior", a.ExperienceLevel)
	assert.Equal(t, "ML/AI", a.Domain)
	assert.Equal(t, "Builds models.", a.Summary)
}

func TestAnalyzeResumeFallback(t *testing.T) {
	t.Parallel()

	profile := BuildProfile("Senior engineer. Machine learning with PyTorch.", "", nil)

	for name, m := range map[string]*Matcher{
		"no generator": New(nil, nil, 0),
		"model error":  New(&stubGenerator{err: errors.New("boom")}, nil, 0),
	} {
		a := m.AnalyzeResume(context.Background(), profile)
		assert.Equal(t, "senior", a.ExperienceLevel, name)
		assert.Equal(t, "AI/ML", a.Domain, name)
		assert.Equal(t, "Profile with 2 identified skills.", a.Summary, name)
	}
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Tech", domainOf([]string{"go", "postgres"}))
	assert.Equal(t, "AI/ML", domainOf([]string{"go", "mlflow"}))
	assert.Equal(t, "Tech", domainOf(nil))
}
