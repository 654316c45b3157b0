package sources

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const builtInCardsPerPage = 20

var builtInPages = []string{"/jobs/remote", "/jobs/machine-learning", "/jobs/data-science"}

// BuiltIn scrapes the category listing pages of builtin.com.
type BuiltIn struct {
	*Base
	BaseURL string
}

func NewBuiltIn(opts Options) *BuiltIn {
	return &BuiltIn{
		Base:    newBase("BuiltIn", opts, false),
		BaseURL: "https://builtin.com",
	}
}

func (b *BuiltIn) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := b.newBatch(limit)

	for _, page := range builtInPages {
		if out.Full() || ctx.Err() != nil {
			break
		}
		pageURL := b.BaseURL + page
		resp, err := b.get(ctx, pageURL, nil, acceptHTML)
		if errors.Is(err, errForbidden) {
			b.logger.Warn("listing blocked, stopping", zap.String("url", pageURL))
			break
		}
		if err != nil {
			b.logger.Warn("fetching listing failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		postings, err := ParseBuiltInCards(resp.body, pageURL)
		if err != nil {
			b.logger.Warn("parsing listing failed", zap.String("url", pageURL), zap.Error(err))
			continue
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

// ParseBuiltInCards extracts up to 20 postings from a listing page; links
// are resolved against pageURL.
func ParseBuiltInCards(body []byte, pageURL string) ([]jobs.Posting, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	cards := findAll(doc, tagWithClass("div", "job-card", "job-listing"))
	if len(cards) == 0 {
		cards = findAll(doc, tag("article"))
	}
	if len(cards) > builtInCardsPerPage {
		cards = cards[:builtInCardsPerPage]
	}

	var postings []jobs.Posting
	for _, card := range cards {
		title := textOf(findFirst(card, tag("h2"), tag("h3"), tagWithClass("a", "title"), tag("a")))
		if len([]rune(title)) < 3 {
			continue
		}
		location := firstNonEmpty(
			textOf(findFirst(card, tagWithClass("", "location"))),
			jobs.DefaultLocation,
		)
		postings = append(postings, jobs.Posting{
			Title:       title,
			Company:     textOf(findFirst(card, tagWithClass("", "company"))),
			Location:    location,
			Link:        absoluteURL(pageURL, attr(findFirst(card, linkWithHref), "href")),
			Description: textOf(findFirst(card, tag("p"), tagWithClass("div", "description"))),
			JobType:     jobs.DetectMode(location),
		})
	}
	return postings, nil
}
