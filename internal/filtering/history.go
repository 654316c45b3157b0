package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

type historyFilter struct{}

// NewHistory creates a filter that removes postings already recorded in the store.
func NewHistory() Filter {
	return &historyFilter{}
}

func (f *historyFilter) Name() string { return "history" }

func (f *historyFilter) Disable(string) {}

func (f *historyFilter) IsEnabled() bool { return true }

func (f *historyFilter) Validate(*Config) error { return nil }

func (f *historyFilter) Apply(_ context.Context, deps Deps, postings []jobs.Posting) ([]jobs.Posting, Step, error) {
	initial := len(postings)
	if deps.Store == nil {
		return postings, Step{}, fmt.Errorf("store is required")
	}

	identities, err := deps.Store.GetExistingIdentities()
	if err != nil {
		return postings, Step{}, fmt.Errorf("get existing identities: %w", err)
	}

	left := jobs.Deduplicate(postings, jobs.KeySet(identities))
	if deps.Logger != nil && initial != len(left) {
		deps.Logger.Info("excluding postings seen in previous runs",
			zap.Int("excluded", initial-len(left)),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}, nil
}
