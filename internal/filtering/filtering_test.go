package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

type fakeStore struct {
	identities []jobs.Identity
	err        error
}

func (s *fakeStore) GetExistingIdentities() ([]jobs.Identity, error) {
	return s.identities, s.err
}

func titles(postings []jobs.Posting) []string {
	out := make([]string, 0, len(postings))
	for _, p := range postings {
		out = append(out, p.Title)
	}
	return out
}

func TestKeywordsFilter(t *testing.T) {
	t.Parallel()

	postings := []jobs.Posting{
		{Title: "ML Engineer", Company: "Acme"},
		{Title: "Accountant", Company: "Beta", Description: "Ledgers and taxes"},
		{Title: "Backend Engineer", Description: "Serving PyTorch models"},
		{Title: "Email marketer", Description: "Campaigns"},
	}

	got, err := Run(context.Background(), &Config{}, Deps{}, []Filter{NewKeywords()}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"ML Engineer", "Backend Engineer"}, titles(got))
}

func TestTitleKeywordsFilterIgnoresDescription(t *testing.T) {
	t.Parallel()

	postings := []jobs.Posting{
		{Title: "Backend Engineer", Description: "Serving PyTorch models"},
		{Title: "NLP Researcher"},
	}

	got, err := Run(context.Background(), nil, Deps{}, []Filter{NewTitleKeywords()}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"NLP Researcher"}, titles(got))
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsAny("Senior MLOps Engineer", AIMLKeywords))
	assert.True(t, ContainsAny("Head of AI", AIMLKeywords))
	assert.False(t, ContainsAny("Accountant", AIMLKeywords))
	assert.False(t, ContainsAny("anything", nil))
}

func TestExcludedCompaniesFilter(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	postings := []jobs.Posting{
		{Title: "ML Engineer", Company: "MegaCorp Inc"},
		{Title: "Data Scientist", Company: "Startup"},
	}
	cfg := &Config{ExcludedCompanies: []string{" megacorp ", ""}}

	got, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core)}, []Filter{NewExcludedCompanies()}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Scientist"}, titles(got))
	assert.Equal(t, 1, logs.FilterMessage("excluding postings by companies").Len())
}

func TestHistoryFilter(t *testing.T) {
	t.Parallel()

	store := &fakeStore{identities: []jobs.Identity{{Title: "ml engineer", Company: "ACME"}}}
	postings := []jobs.Posting{
		{Title: "ML Engineer", Company: "Acme"},
		{Title: "Data Scientist", Company: "Acme"},
	}

	got, err := Run(context.Background(), nil, Deps{Store: store}, []Filter{NewHistory()}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Scientist"}, titles(got))
}

func TestHistoryFilterErrors(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), nil, Deps{}, []Filter{NewHistory()}, []jobs.Posting{{Title: "x"}})
	assert.Error(t, err)

	store := &fakeStore{err: errors.New("disk")}
	_, err = Run(context.Background(), nil, Deps{Store: store}, []Filter{NewHistory()}, []jobs.Posting{{Title: "x"}})
	assert.ErrorContains(t, err, "history")
}

func TestCombinedScoreFilterRanksStably(t *testing.T) {
	t.Parallel()

	postings := []jobs.Posting{
		{Title: "a", CombinedScore: 6.0},
		{Title: "b", CombinedScore: 4.9},
		{Title: "c", CombinedScore: 8.2},
		{Title: "d", CombinedScore: 6.0},
		{Title: "e", CombinedScore: 5.0},
	}

	got, err := Run(context.Background(), &Config{MinCombined: 5}, Deps{}, []Filter{NewCombinedScore()}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "d", "e"}, titles(got))
}

func TestCombinedScoreFilterValidates(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Config{MinCombined: 11}, Deps{}, []Filter{NewCombinedScore()}, nil)
	assert.ErrorContains(t, err, "combined_score")
}

func TestLimitFilter(t *testing.T) {
	t.Parallel()

	postings := []jobs.Posting{{Title: "a"}, {Title: "b"}, {Title: "c"}}

	got, err := Run(context.Background(), nil, Deps{}, []Filter{NewLimit(2)}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(got))

	got, err = Run(context.Background(), nil, Deps{}, []Filter{NewLimit(0)}, postings)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestExcludeFileFilter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "excluded.json")
	dismissed := ToExcluded([]jobs.Posting{{Title: "ML Engineer", Company: "Acme"}})
	dismissed.Append(&ExcludedPostings{Items: []*ExcludedPosting{{Link: "https://example.com/2"}}})
	require.NoError(t, dismissed.ToFile(path))

	postings := []jobs.Posting{
		{Title: "ml  engineer", Company: "ACME", Link: "https://example.com/1"},
		{Title: "Data Scientist", Company: "Beta", Link: "https://example.com/2"},
		{Title: "NLP Engineer", Company: "Gamma", Link: "https://example.com/3"},
	}

	got, err := Run(context.Background(), &Config{ExcludeFile: path}, Deps{}, []Filter{NewExcludeFile()}, postings)
	require.NoError(t, err)
	assert.Equal(t, []string{"NLP Engineer"}, titles(got))
}

func TestLoadExcludedFileMissing(t *testing.T) {
	t.Parallel()

	excluded, err := LoadExcludedFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, excluded.Items)
}

func TestDisableByNameAndDescribe(t *testing.T) {
	t.Parallel()

	steps := []Filter{NewKeywords(), NewExcludedCompanies()}
	DisableByName(steps, "keywords", "source filters by title")

	postings := []jobs.Posting{{Title: "Accountant"}}
	got, err := Run(context.Background(), nil, Deps{}, steps, postings)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	statuses := Describe(steps)
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Enabled)
	assert.Equal(t, "source filters by title", statuses[0].Reason)
	assert.True(t, statuses[1].Enabled)
}

func TestExcludeFileDisabledKeepsPostings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exclude.json")
	require.NoError(t, ToExcluded([]jobs.Posting{{Title: "Dismissed", Company: "D"}}).ToFile(path))

	steps := []Filter{NewExcludeFile()}
	DisableByName(steps, "exclude_file", "exclude file is not configured")

	postings := []jobs.Posting{{Title: "Dismissed", Company: "D"}}
	got, err := Run(context.Background(), &Config{ExcludeFile: path}, Deps{}, steps, postings)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	status := Describe(steps)[0]
	assert.Equal(t, "exclude_file", status.Name)
	assert.False(t, status.Enabled)
	assert.Equal(t, "exclude file is not configured", status.Reason)
}
