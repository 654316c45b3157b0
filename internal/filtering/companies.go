package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

type companiesFilter struct {
	companies []string
}

// NewExcludedCompanies creates a filter that removes postings from companies
// configured by the operator. A configured name matches any company containing it.
func NewExcludedCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg == nil {
		return nil
	}
	for _, c := range cfg.ExcludedCompanies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			f.companies = append(f.companies, c)
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, postings []jobs.Posting) ([]jobs.Posting, Step, error) {
	initial := len(postings)
	if len(f.companies) == 0 {
		return postings, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	left, dropped := keep(postings, func(p *jobs.Posting) bool {
		return !f.excluded(p.Company)
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, Step{Initial: initial, Dropped: len(dropped), Left: len(left)}, nil
}

func (f *companiesFilter) excluded(company string) bool {
	company = strings.ToLower(company)
	for _, c := range f.companies {
		if strings.Contains(company, c) {
			return true
		}
	}
	return false
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
