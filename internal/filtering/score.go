package filtering

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

type combinedScoreFilter struct {
	minimum float64
}

// NewCombinedScore creates the qualification step: postings below the
// minimum combined score are dropped and the rest are ranked.
func NewCombinedScore() Filter {
	return &combinedScoreFilter{}
}

func (f *combinedScoreFilter) Name() string { return "combined_score" }

func (f *combinedScoreFilter) Disable(string) {}

func (f *combinedScoreFilter) IsEnabled() bool { return true }

func (f *combinedScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg != nil {
		f.minimum = cfg.MinCombined
	}
	if f.minimum < 0 || f.minimum > 10 {
		return fmt.Errorf("minimum combined score %.1f is outside [0,10]", f.minimum)
	}
	return nil
}

func (f *combinedScoreFilter) Apply(_ context.Context, deps Deps, postings []jobs.Posting) ([]jobs.Posting, Step, error) {
	initial := len(postings)
	left, dropped := keep(postings, func(p *jobs.Posting) bool {
		return p.CombinedScore >= f.minimum
	})
	Rank(left)

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings below minimum combined score",
			zap.Float64("minimum", f.minimum),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, Step{Initial: initial, Dropped: len(dropped), Left: len(left)}, nil
}

func (f *combinedScoreFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{
		"minimum": fmt.Sprintf("%.1f", f.minimum),
	}}
}

// Rank sorts postings by combined score, highest first. Equal scores keep
// their relative order.
func Rank(postings []jobs.Posting) {
	sort.SliceStable(postings, func(i, j int) bool {
		return postings[i].CombinedScore > postings[j].CombinedScore
	})
}
