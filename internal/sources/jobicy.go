package sources

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

var jobicyTags = []string{"data-science", "machine-learning", "artificial-intelligence", "python", "data"}

type Jobicy struct {
	*Base
	APIURL string
}

func NewJobicy(opts Options) *Jobicy {
	return &Jobicy{Base: newBase("Jobicy", opts, false), APIURL: "https://jobicy.com/api/v2/remote-jobs"}
}

type jobicyResponse struct {
	Jobs []struct {
		URL             string     `json:"url"`
		JobTitle        string     `json:"jobTitle"`
		CompanyName     string     `json:"companyName"`
		JobGeo          string     `json:"jobGeo"`
		JobLevel        string     `json:"jobLevel"`
		JobDescription  string     `json:"jobDescription"`
		JobExcerpt      string     `json:"jobExcerpt"`
		PubDate         string     `json:"pubDate"`
		AnnualSalaryMin flexString `json:"annualSalaryMin"`
	} `json:"jobs"`
}

// Fetch queries the API once per tag until the limit is reached.
func (j *Jobicy) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := j.newBatch(limit)

	for _, tag := range jobicyTags {
		if out.Full() || ctx.Err() != nil {
			break
		}

		var resp jobicyResponse
		q := url.Values{"count": {"50"}, "tag": {tag}}
		if err := j.getJSON(ctx, j.APIURL, q, &resp); err != nil {
			j.logger.Warn("fetching tag failed", zap.String("tag", tag), zap.Error(err))
			continue
		}

		for _, item := range resp.Jobs {
			if out.Full() {
				break
			}
			mode := jobs.ModeRemote
			if strings.Contains(strings.ToLower(item.JobGeo), "hybrid") {
				mode = jobs.ModeHybrid
			}
			out.Add(ctx, jobs.Posting{
				Title:           item.JobTitle,
				Company:         item.CompanyName,
				Location:        item.JobGeo,
				Link:            item.URL,
				Description:     HTMLToText(firstNonEmpty(item.JobDescription, item.JobExcerpt)),
				Date:            item.PubDate,
				Salary:          item.AnnualSalaryMin.String(),
				JobType:         mode,
				ExperienceLevel: item.JobLevel,
			})
		}
	}

	return out.Postings()
}
