package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

type limitFilter struct {
	disabled bool
	reason   string
	limit    int
}

// NewLimit creates a filter that keeps only the first n postings.
func NewLimit(n int) Filter {
	return &limitFilter{limit: n}
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *limitFilter) IsEnabled() bool { return !f.disabled && f.limit > 0 }

func (f *limitFilter) Validate(*Config) error { return nil }

func (f *limitFilter) Apply(_ context.Context, _ Deps, postings []jobs.Posting) ([]jobs.Posting, Step, error) {
	initial := len(postings)
	if initial > f.limit {
		postings = postings[:f.limit]
	}
	return postings, Step{Initial: initial, Dropped: initial - len(postings), Left: len(postings)}, nil
}

func (f *limitFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{
		"limit": strconv.Itoa(f.limit),
	}}
}
