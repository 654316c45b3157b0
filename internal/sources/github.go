package sources

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

var (
	markdownLinkRe  = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mlCompanyTokens = []string{"ai", "ml", "data", "learn", "neural", "deep"}
)

// GitHub reads company lists maintained as markdown on GitHub. Entries
// carry no job titles, so AI/data companies get a generic ML title.
type GitHub struct {
	*Base
	ListURLs []string
}

func NewGitHub(opts Options) *GitHub {
	return &GitHub{
		Base:     newBase("GitHub", opts, false),
		ListURLs: []string{"https://raw.githubusercontent.com/poteto/hiring-without-whiteboards/main/README.md"},
	}
}

func (g *GitHub) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := g.newBatch(limit)

	for _, listURL := range g.ListURLs {
		if out.Full() || ctx.Err() != nil {
			break
		}
		resp, err := g.get(ctx, listURL, nil, "text/plain")
		if err != nil {
			g.logger.Warn("fetching list failed", zap.String("url", listURL), zap.Error(err))
			continue
		}

		for _, p := range ParseCompanyList(string(resp.body)) {
			if out.Full() {
				break
			}
			out.Add(ctx, p)
		}
	}

	return out.Postings()
}

// ParseCompanyList extracts AI/data companies from markdown table rows or
// list items of the form "[Company](link) | Location".
func ParseCompanyList(content string) []jobs.Posting {
	var postings []jobs.Posting
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}

		var parts []string
		for _, p := range strings.Split(strings.TrimPrefix(line, "- "), "|") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) < 2 {
			continue
		}

		m := markdownLinkRe.FindStringSubmatch(parts[0])
		if m == nil {
			continue
		}
		company, link := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if !looksLikeMLCompany(company) {
			continue
		}

		postings = append(postings, jobs.Posting{
			Title:       "ML/AI Engineer",
			Company:     company,
			Location:    parts[1],
			Link:        link,
			Description: "Company from 'Hiring Without Whiteboards' list",
			JobType:     jobs.DetectMode(parts[1]),
		})
	}
	return postings
}

func looksLikeMLCompany(company string) bool {
	lower := strings.ToLower(company)
	for _, token := range mlCompanyTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
