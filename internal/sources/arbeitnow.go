package sources

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

type Arbeitnow struct {
	*Base
	APIURL string
}

func NewArbeitnow(opts Options) *Arbeitnow {
	return &Arbeitnow{Base: newBase("Arbeitnow", opts, false), APIURL: "https://www.arbeitnow.com/api/job-board-api"}
}

type arbeitnowResponse struct {
	Data []struct {
		Title       string     `json:"title"`
		CompanyName string     `json:"company_name"`
		Location    string     `json:"location"`
		Description string     `json:"description"`
		Remote      bool       `json:"remote"`
		URL         string     `json:"url"`
		Tags        []string   `json:"tags"`
		CreatedAt   flexString `json:"created_at"`
	} `json:"data"`
}

func (a *Arbeitnow) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := a.newBatch(limit)

	var resp arbeitnowResponse
	if err := a.getJSON(ctx, a.APIURL, nil, &resp); err != nil {
		a.logger.Warn("fetching job board failed", zap.Error(err))
		return out.Postings()
	}

	for _, item := range resp.Data {
		if out.Full() {
			break
		}
		mode := jobs.ModeOnsite
		if item.Remote {
			mode = jobs.ModeRemote
		}
		out.Add(ctx, jobs.Posting{
			Title:       item.Title,
			Company:     item.CompanyName,
			Location:    item.Location,
			Link:        item.URL,
			Description: HTMLToText(item.Description),
			Date:        item.CreatedAt.String(),
			JobType:     mode,
			Skills:      item.Tags,
		})
	}

	return out.Postings()
}
