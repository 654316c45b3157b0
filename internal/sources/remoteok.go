package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const remoteOKSite = "https://remoteok.com"

type RemoteOK struct {
	*Base
	APIURL string
}

func NewRemoteOK(opts Options) *RemoteOK {
	return &RemoteOK{Base: newBase("RemoteOK", opts, false), APIURL: remoteOKSite + "/api"}
}

type remoteOKItem struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Position    string   `json:"position"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	SalaryMin   float64  `json:"salary_min"`
	SalaryMax   float64  `json:"salary_max"`
}

// Fetch reads the public JSON feed. Its first element is a legal notice.
func (r *RemoteOK) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := r.newBatch(limit)

	var raw []map[string]any
	if err := r.getJSON(ctx, r.APIURL, nil, &raw); err != nil {
		r.logger.Warn("fetching feed failed", zap.Error(err))
		return out.Postings()
	}
	if len(raw) > 1 {
		raw = raw[1:]
	}

	for _, entry := range raw {
		if out.Full() {
			break
		}
		if _, ok := entry["position"]; !ok {
			continue
		}

		var item remoteOKItem
		if err := decodeLoose(entry, &item); err != nil {
			r.logger.Debug("skipping malformed item", zap.Error(err))
			continue
		}

		out.Add(ctx, jobs.Posting{
			Title:       item.Position,
			Company:     item.Company,
			Location:    item.Location,
			Link:        remoteOKLink(item),
			Description: HTMLToText(item.Description),
			Date:        item.Date,
			Salary:      formatSalary(item.SalaryMin, item.SalaryMax, "$"),
			JobType:     jobs.ModeRemote,
			Skills:      item.Tags,
		})
	}

	return out.Postings()
}

func remoteOKLink(item remoteOKItem) string {
	switch {
	case item.Slug != "":
		return fmt.Sprintf("%s/remote-jobs/%s", remoteOKSite, item.Slug)
	case item.ID != "":
		return fmt.Sprintf("%s/remote-jobs/%s", remoteOKSite, item.ID)
	default:
		return item.URL
	}
}
