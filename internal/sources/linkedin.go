package sources

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const linkedInCardsPerQuery = 20

var linkedInQueries = []string{"machine learning", "AI engineer", "data scientist"}

// LinkedIn scrapes the public job search page for postings of the last day.
type LinkedIn struct {
	*Base
	SearchURL string
	Site      string
}

func NewLinkedIn(opts Options) *LinkedIn {
	return &LinkedIn{
		Base:      newBase("LinkedIn", opts, false),
		SearchURL: "https://www.linkedin.com/jobs/search/",
		Site:      "https://www.linkedin.com",
	}
}

func (l *LinkedIn) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := l.newBatch(limit)

	for _, query := range l.searchKeywords(linkedInQueries, len(linkedInQueries)) {
		if out.Full() || ctx.Err() != nil {
			break
		}
		q := url.Values{"keywords": {query}, "f_TPR": {"r86400"}}
		resp, err := l.get(ctx, l.SearchURL, q, acceptHTML)
		if errors.Is(err, errForbidden) {
			l.logger.Warn("search blocked, stopping", zap.String("query", query))
			break
		}
		if err != nil {
			l.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		postings, err := ParseLinkedInCards(resp.body, l.Site)
		if err != nil {
			l.logger.Warn("parsing search page failed", zap.String("query", query), zap.Error(err))
			continue
		}
		if len(postings) > linkedInCardsPerQuery {
			postings = postings[:linkedInCardsPerQuery]
		}
		for _, p := range postings {
			if out.Full() {
				break
			}
			out.Add(ctx, p)
		}
	}

	return out.Postings()
}

// ParseLinkedInCards extracts postings from a search result page. Relative
// links are resolved against site.
func ParseLinkedInCards(body []byte, site string) ([]jobs.Posting, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	var postings []jobs.Posting
	for _, card := range findAll(doc, tagWithClass("div", "job-search-card", "base-card")) {
		title := textOf(findFirst(card, tag("h3"), tagWithClass("span", "title")))
		if title == "" {
			continue
		}
		location := textOf(findFirst(card, tagWithClass("span", "location")))
		postings = append(postings, jobs.Posting{
			Title:    title,
			Company:  textOf(findFirst(card, tag("h4"), tagWithClass("a", "company"))),
			Location: location,
			Link:     absoluteURL(site, attr(findFirst(card, linkWithHref), "href")),
			JobType:  jobs.DetectMode(location),
		})
	}
	return postings, nil
}

