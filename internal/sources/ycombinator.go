package sources

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const (
	ycSite         = "https://www.workatastartup.com"
	ycMaxCompanies = 30
)

var ycQueries = []string{"machine learning", "AI", "data science", "deep learning"}

type YCombinator struct {
	*Base
	APIURL string
}

// NewYCombinator builds the Work at a Startup adapter. Its listings carry no
// descriptions, so the pre-filter looks at titles only.
func NewYCombinator(opts Options) *YCombinator {
	return &YCombinator{Base: newBase("Y Combinator", opts, true), APIURL: ycSite + "/api/companies/search"}
}

type ycCompany struct {
	Name string  `json:"name"`
	Slug string  `json:"slug"`
	Jobs []ycJob `json:"jobs"`
}

type ycJob struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Location    string `json:"location"`
	Remote      bool   `json:"remote"`
	Description string `json:"description"`
	SalaryRange string `json:"salary_range"`
	Experience  string `json:"experience"`
}

func (y *YCombinator) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := y.newBatch(limit)

	for _, query := range ycQueries {
		if out.Full() || ctx.Err() != nil {
			break
		}

		var raw map[string]any
		q := url.Values{"query": {query}, "page": {"1"}}
		if err := y.getJSON(ctx, y.APIURL, q, &raw); err != nil {
			y.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		var companies []ycCompany
		if err := decodeLoose(raw["companies"], &companies); err != nil {
			y.logger.Debug("unexpected companies payload", zap.Error(err))
			continue
		}
		if len(companies) > ycMaxCompanies {
			companies = companies[:ycMaxCompanies]
		}

		for _, company := range companies {
			for _, job := range company.Jobs {
				if out.Full() {
					break
				}
				mode := jobs.ModeOnsite
				if job.Remote {
					mode = jobs.ModeRemote
				}
				out.Add(ctx, jobs.Posting{
					Title:           job.Title,
					Company:         firstNonEmpty(company.Name, "YC Startup"),
					Location:        job.Location,
					Link:            ycLink(company.Slug, job.Slug),
					Description:     HTMLToText(job.Description),
					Salary:          job.SalaryRange,
					JobType:         mode,
					ExperienceLevel: job.Experience,
				})
			}
		}
	}

	return out.Postings()
}

func ycLink(companySlug, jobSlug string) string {
	switch {
	case jobSlug != "":
		return fmt.Sprintf("%s/jobs/%s", ycSite, jobSlug)
	case companySlug != "":
		return fmt.Sprintf("%s/companies/%s", ycSite, companySlug)
	default:
		return ycSite
	}
}
