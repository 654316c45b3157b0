package sources

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

var findworkQueries = []string{"machine learning", "data scientist", "AI engineer", "deep learning"}

type Findwork struct {
	*Base
	APIURL string
}

func NewFindwork(opts Options) *Findwork {
	return &Findwork{Base: newBase("Findwork", opts, false), APIURL: "https://findwork.dev/api/jobs/"}
}

type findworkResponse struct {
	Results []struct {
		Role        string   `json:"role"`
		CompanyName string   `json:"company_name"`
		Location    string   `json:"location"`
		Remote      bool     `json:"remote"`
		URL         string   `json:"url"`
		Text        string   `json:"text"`
		DatePosted  string   `json:"date_posted"`
		Keywords    []string `json:"keywords"`
	} `json:"results"`
}

func (f *Findwork) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := f.newBatch(limit)

	for _, query := range f.searchKeywords(findworkQueries, 4) {
		if out.Full() || ctx.Err() != nil {
			break
		}

		var resp findworkResponse
		q := url.Values{"search": {query}, "sort_by": {"relevance"}}
		if err := f.getJSON(ctx, f.APIURL, q, &resp); err != nil {
			f.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		for _, item := range resp.Results {
			if out.Full() {
				break
			}
			mode := jobs.ModeOnsite
			if item.Remote {
				mode = jobs.ModeRemote
			}
			out.Add(ctx, jobs.Posting{
				Title:       item.Role,
				Company:     item.CompanyName,
				Location:    item.Location,
				Link:        item.URL,
				Description: HTMLToText(item.Text),
				Date:        item.DatePosted,
				JobType:     mode,
				Skills:      item.Keywords,
			})
		}
	}

	return out.Postings()
}
