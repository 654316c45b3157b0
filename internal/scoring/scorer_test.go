package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spigell/ml-job-radar/internal/jobs"

	"github.com/stretchr/testify/assert"
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

func TestScoreRelevanceLayeredParsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     int
	}{
		{name: "plain json", response: `{"score": 8, "reason": "core ML", "is_ml_role": true}`, want: 8},
		{name: "json in prose", response: `Sure! {"score": 6, "reason": "adjacent"} Let me know.`, want: 6},
		{name: "broken json with score field", response: `{"score": 9, "reason": "unterminated`, want: 9},
		{name: "bare number", response: "I'd rate this a 10 out of 10", want: 10},
		{name: "first bare number wins", response: "score 4, maybe 7", want: 4},
		{name: "quoted score", response: `{"score": "7"}`, want: 7},
		{name: "too high is clamped", response: `{"score": 42}`, want: 10},
		{name: "negative is clamped", response: `{"score": -3}`, want: 1},
		{name: "zero is clamped", response: `{"score": 0}`, want: 1},
		{name: "huge field is clamped", response: `"score": 99999999999999999999999`, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stub := &stubGenerator{response: tt.response}
			scorer := New(stub, zap.NewNop(), 0)

			got := scorer.ScoreRelevance(context.Background(), &jobs.Posting{Title: "Accountant", Company: "Beta"})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, stub.calls)
		})
	}
}

func TestScoreRelevanceFallsBackToKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stub    *stubGenerator
		posting jobs.Posting
		want    int
	}{
		{
			name:    "inference error",
			stub:    &stubGenerator{err: errors.New("connection refused")},
			posting: jobs.Posting{Title: "Senior ML Engineer"},
			want:    9,
		},
		{
			name:    "unparsable answer",
			stub:    &stubGenerator{response: "I cannot help with that."},
			posting: jobs.Posting{Title: "Data Engineer"},
			want:    7,
		},
		{
			name:    "object without score",
			stub:    &stubGenerator{response: `{"reason": "looks fine"}`},
			posting: jobs.Posting{Title: "Software Engineer", Description: "Go services"},
			want:    5,
		},
		{
			name:    "no tier matches",
			stub:    &stubGenerator{response: ""},
			posting: jobs.Posting{Title: "Accountant"},
			want:    3,
		},
		{
			name:    "description feeds the tiers",
			stub:    &stubGenerator{err: context.DeadlineExceeded},
			posting: jobs.Posting{Title: "Engineer", Description: "You will work with deep learning models"},
			want:    7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scorer := New(tt.stub, nil, 0)
			assert.Equal(t, tt.want, scorer.ScoreRelevance(context.Background(), &tt.posting))
		})
	}
}

func TestScoreRelevanceWithoutGenerator(t *testing.T) {
	t.Parallel()

	scorer := New(nil, nil, 0)
	got := scorer.ScoreRelevance(context.Background(), &jobs.Posting{Title: "NLP Engineer"})
	assert.Equal(t, 9, got)
}

func TestScoreRelevanceAlwaysInRange(t *testing.T) {
	t.Parallel()

	adversarial := []string{
		"", "{}", "{{{{", `{"score": null}`, `{"score": 1e400}`, `{"score": -99999}`,
		"0", "11", "score: eleven", "```json\n{\"score\": 100}\n```", strings.Repeat("9", 400),
	}

	for _, response := range adversarial {
		scorer := New(&stubGenerator{response: response}, nil, 0)
		got := scorer.ScoreRelevance(context.Background(), &jobs.Posting{Title: "x"})
		assert.GreaterOrEqual(t, got, MinScore, "response %q", response)
		assert.LessOrEqual(t, got, MaxScore, "response %q", response)
	}
}

func TestScoreRelevanceUsesTimeout(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: `{"score": 5}`}
	New(stub, nil, 0).ScoreRelevance(context.Background(), &jobs.Posting{Title: "x"})
	assert.InDelta(t, DefaultTimeout.Seconds(), stub.deadline.Seconds(), 1)

	stub = &stubGenerator{response: `{"score": 5}`}
	New(stub, nil, 0).WithTimeout(time.Second).ScoreRelevance(context.Background(), &jobs.Posting{Title: "x"})
	assert.InDelta(t, 1, stub.deadline.Seconds(), 0.5)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := &jobs.Posting{Title: "LLM Engineer", Company: "Acme", Description: strings.Repeat("d", 800)}
	prompt := BuildPrompt(p)

	assert.Contains(t, prompt, "- Title: LLM Engineer")
	assert.Contains(t, prompt, "- Company: Acme")
	assert.Contains(t, prompt, "- Description: "+strings.Repeat("d", maxPromptDesc)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("d", maxPromptDesc+1))

	empty := BuildPrompt(&jobs.Posting{Title: "x", Company: "y"})
	assert.Contains(t, empty, "No description available")
}

func TestKeywordScoreTierOrder(t *testing.T) {
	t.Parallel()

	// "data scientist" is high even though "data analyst" (low) also appears
	assert.Equal(t, 9, KeywordScore("data analyst turned data scientist"))
	assert.Equal(t, 7, KeywordScore("quantitative researcher"))
	assert.Equal(t, 5, KeywordScore("full stack developer"))
	assert.Equal(t, 3, KeywordScore("barista"))
}

func TestParseScoreStrategies(t *testing.T) {
	t.Parallel()

	_, strategy, ok := ParseScore(`{"score": 3}`)
	assert.True(t, ok)
	assert.Equal(t, "json", strategy)

	_, strategy, _ = ParseScore(`text {"score": 3, "x": 1} text`)
	assert.Equal(t, "json_object", strategy)

	_, strategy, _ = ParseScore(`"score": 3, "reason": "x" }}}`)
	assert.Equal(t, "score_field", strategy)

	_, strategy, _ = ParseScore(`around 3`)
	assert.Equal(t, "bare_number", strategy)

	_, _, ok = ParseScore("none at all")
	assert.False(t, ok)
}
