package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const (
	hnItemURL        = "https://news.ycombinator.com/item?id="
	hnHiringUser     = "whoishiring"
	hnMaxSubmissions = 10
	hnMaxComments    = 200
)

var hnSalaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$[\d,.]+k?\s*-\s*\$[\d,.]+k?`),
	regexp.MustCompile(`(?i)\$[\d,.]+k?\s*(?:to|–)\s*\$[\d,.]+k?`),
	regexp.MustCompile(`(?i)[\d,.]+k\s*-\s*[\d,.]+k`),
}

type HackerNews struct {
	*Base
	APIBase string
}

func NewHackerNews(opts Options) *HackerNews {
	return &HackerNews{Base: newBase("HackerNews", opts, false), APIBase: "https://hacker-news.firebaseio.com/v0"}
}

type hnItem struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Kids    []int64 `json:"kids"`
	Deleted bool    `json:"deleted"`
	Dead    bool    `json:"dead"`
}

// Fetch finds the latest "Who is hiring?" thread and parses its top-level
// comments as postings.
func (h *HackerNews) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := h.newBatch(limit)

	thread, err := h.findThread(ctx)
	if err != nil {
		h.logger.Warn("hiring thread lookup failed", zap.Error(err))
		return out.Postings()
	}
	if thread == nil {
		h.logger.Info("no hiring thread found")
		return out.Postings()
	}
	h.logger.Debug("found hiring thread", zap.String("title", thread.Title), zap.Int("comments", len(thread.Kids)))

	kids := thread.Kids
	if len(kids) > hnMaxComments {
		kids = kids[:hnMaxComments]
	}

	for _, id := range kids {
		if out.Full() || ctx.Err() != nil {
			break
		}
		comment, err := h.item(ctx, id)
		if err != nil {
			h.logger.Debug("fetching comment failed", zap.Int64("id", id), zap.Error(err))
			continue
		}
		if comment.Deleted || comment.Dead || strings.TrimSpace(comment.Text) == "" {
			continue
		}
		out.Add(ctx, ParseHNComment(comment.Text, id))
	}

	return out.Postings()
}

func (h *HackerNews) findThread(ctx context.Context) (*hnItem, error) {
	var user struct {
		Submitted []int64 `json:"submitted"`
	}
	if err := h.getJSON(ctx, fmt.Sprintf("%s/user/%s.json", h.APIBase, hnHiringUser), nil, &user); err != nil {
		return nil, err
	}

	submissions := user.Submitted
	if len(submissions) > hnMaxSubmissions {
		submissions = submissions[:hnMaxSubmissions]
	}
	for _, id := range submissions {
		item, err := h.item(ctx, id)
		if err != nil {
			h.logger.Debug("fetching submission failed", zap.Int64("id", id), zap.Error(err))
			continue
		}
		if strings.Contains(strings.ToLower(item.Title), "who is hiring") {
			return item, nil
		}
	}
	return nil, nil
}

func (h *HackerNews) item(ctx context.Context, id int64) (*hnItem, error) {
	var item hnItem
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.APIBase, id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ParseHNComment reads a hiring comment whose first line follows the
// "Company | Title | Location | ..." convention.
func ParseHNComment(htmlText string, id int64) jobs.Posting {
	lines := textLines(htmlText)
	text := strings.Join(lines, "\n")

	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	parts := strings.Split(first, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	company, title, location := jobs.Unknown, "Unknown Position", jobs.Unknown
	if len(parts) > 0 && parts[0] != "" {
		company = truncateRunes(parts[0], 100)
	}
	if len(parts) > 1 && parts[1] != "" {
		title = truncateRunes(parts[1], 200)
	}
	if len(parts) > 2 && parts[2] != "" {
		location = parts[2]
	}
	if strings.Contains(strings.ToLower(company), "http") || len([]rune(company)) > 50 {
		if words := strings.Fields(company); len(words) > 0 {
			company = words[0]
		} else {
			company = "Startup"
		}
	}

	salary := ""
	for _, re := range hnSalaryPatterns {
		if m := re.FindString(text); m != "" {
			salary = m
			break
		}
	}

	return jobs.Posting{
		Title:       title,
		Company:     company,
		Location:    location,
		Link:        fmt.Sprintf("%s%d", hnItemURL, id),
		Description: text,
		Salary:      salary,
		JobType:     hnMode(text),
	}
}

// hnMode prefers remote, then onsite, then hybrid.
func hnMode(text string) jobs.Mode {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "remote"):
		return jobs.ModeRemote
	case strings.Contains(lower, "onsite"), strings.Contains(lower, "on-site"):
		return jobs.ModeOnsite
	case strings.Contains(lower, "hybrid"):
		return jobs.ModeHybrid
	default:
		return jobs.ModeUnknown
	}
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
