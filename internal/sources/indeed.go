package sources

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const (
	indeedItemsPerQuery = 15
	indeedMinFromFeed   = 5
)

var indeedQueries = []string{"machine learning engineer", "data scientist", "AI engineer"}

// Indeed reads the remote job RSS feeds and falls back to scraping the search
// page when the feeds yield too little.
type Indeed struct {
	*Base
	BaseURL string
}

func NewIndeed(opts Options) *Indeed {
	return &Indeed{
		Base:    newBase("Indeed", opts, true),
		BaseURL: "https://www.indeed.com",
	}
}

func (in *Indeed) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := in.newBatch(limit)

	in.fetchFeeds(ctx, out)
	if len(out.items) < indeedMinFromFeed && !out.Full() {
		in.logger.Debug("feed results are sparse, scraping search pages", zap.Int("postings", len(out.items)))
		in.fetchSearch(ctx, out)
	}

	return out.Postings()
}

func (in *Indeed) fetchFeeds(ctx context.Context, out *batch) {
	for _, query := range indeedQueries {
		if out.Full() || ctx.Err() != nil {
			return
		}
		q := url.Values{"q": {query}, "l": {"Remote"}}
		resp, err := in.get(ctx, in.BaseURL+"/rss", q, "application/rss+xml, application/xml")
		if errors.Is(err, errForbidden) {
			in.logger.Warn("feed blocked", zap.String("query", query))
			return
		}
		if err != nil {
			in.logger.Warn("fetching feed failed", zap.String("query", query), zap.Error(err))
			continue
		}
		if !strings.Contains(strings.ToLower(resp.header.Get("Content-Type")), "xml") {
			in.logger.Debug("feed returned non-xml content", zap.String("query", query))
			continue
		}

		items, err := parseRSS(resp.body)
		if err != nil {
			in.logger.Warn("parsing feed failed", zap.String("query", query), zap.Error(err))
			continue
		}
		if len(items) > indeedItemsPerQuery {
			items = items[:indeedItemsPerQuery]
		}
		for _, item := range items {
			if out.Full() {
				return
			}
			title, company := splitDashTitle(item.Title)
			out.Add(ctx, jobs.Posting{
				Title:       title,
				Company:     company,
				Location:    jobs.DefaultLocation,
				Link:        item.Link,
				Description: HTMLToText(item.Description),
				Date:        item.PubDate,
				JobType:     jobs.ModeRemote,
			})
		}
	}
}

func (in *Indeed) fetchSearch(ctx context.Context, out *batch) {
	for _, query := range in.searchKeywords(indeedQueries, 3) {
		if out.Full() || ctx.Err() != nil {
			return
		}
		q := url.Values{"q": {query}, "l": {"Remote"}, "sort": {"date"}}
		resp, err := in.get(ctx, in.BaseURL+"/jobs", q, acceptHTML)
		if errors.Is(err, errForbidden) {
			in.logger.Warn("search blocked, stopping", zap.String("query", query))
			return
		}
		if err != nil {
			in.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		postings, err := ParseIndeedCards(resp.body, in.BaseURL)
		if err != nil {
			in.logger.Warn("parsing search page failed", zap.String("query", query), zap.Error(err))
			continue
		}
		for _, p := range postings {
			if out.Full() {
				return
			}
			out.Add(ctx, p)
		}
	}
}

// ParseIndeedCards extracts up to 15 postings from a search result page.
func ParseIndeedCards(body []byte, site string) ([]jobs.Posting, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	cards := findAll(doc, tagWithClass("div", "job_seen_beacon", "cardoutline"))
	if len(cards) == 0 {
		cards = findAll(doc, tagWithClass("td", "resultcontent"))
	}
	if len(cards) > indeedItemsPerQuery {
		cards = cards[:indeedItemsPerQuery]
	}

	var postings []jobs.Posting
	for _, card := range cards {
		title := textOf(findFirst(card, tag("h2"), tagWithClass("a", "title")))
		if title == "" {
			continue
		}
		location := textOf(findFirst(card, tagWithClass("div", "location")))
		postings = append(postings, jobs.Posting{
			Title:    title,
			Company:  textOf(findFirst(card, tagWithClass("span", "company"))),
			Location: location,
			Link:     absoluteURL(site, attr(findFirst(card, linkWithHref), "href")),
			JobType:  jobs.DetectMode(location),
		})
	}
	return postings, nil
}

// splitDashTitle splits "Title - Company" at the last dash.
func splitDashTitle(raw string) (title, company string) {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, " - "); i > 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+3:])
	}
	return raw, jobs.Unknown
}
