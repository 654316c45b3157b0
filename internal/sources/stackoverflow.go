package sources

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/utils"
)

const (
	feedMaxItems       = 30
	feedMaxDescription = 500
)

// StackOverflow reads remote programming RSS feeds, the closest open
// replacement for the retired Stack Overflow Jobs listings.
type StackOverflow struct {
	*Base
	FeedURLs []string
}

func NewStackOverflow(opts Options) *StackOverflow {
	return &StackOverflow{
		Base:     newBase("TechJobs", opts, false),
		FeedURLs: []string{"https://weworkremotely.com/categories/remote-programming-jobs.rss"},
	}
}

func (s *StackOverflow) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := s.newBatch(limit)

	for _, feedURL := range s.FeedURLs {
		if out.Full() || ctx.Err() != nil {
			break
		}
		resp, err := s.get(ctx, feedURL, nil, "application/rss+xml, application/xml")
		if err != nil {
			s.logger.Warn("fetching feed failed", zap.String("url", feedURL), zap.Error(err))
			continue
		}
		items, err := parseRSS(resp.body)
		if err != nil {
			s.logger.Warn("parsing feed failed", zap.String("url", feedURL), zap.Error(err))
			continue
		}
		if len(items) > feedMaxItems {
			items = items[:feedMaxItems]
		}

		for _, item := range items {
			if out.Full() {
				break
			}
			title, company := splitFeedTitle(item.Title)
			out.Add(ctx, jobs.Posting{
				Title:       title,
				Company:     company,
				Location:    jobs.DefaultLocation,
				Link:        item.Link,
				Description: utils.Truncate(HTMLToText(item.Description), feedMaxDescription),
				Date:        item.PubDate,
				JobType:     jobs.ModeRemote,
			})
		}
	}

	return out.Postings()
}

// splitFeedTitle understands "Company: Title" and "Title at Company".
func splitFeedTitle(raw string) (title, company string) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ": "); i > 0 {
		return strings.TrimSpace(raw[i+2:]), strings.TrimSpace(raw[:i])
	}
	if i := strings.LastIndex(raw, " at "); i > 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+4:])
	}
	return raw, jobs.Unknown
}
