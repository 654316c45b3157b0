package sources

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const (
	himalayasSite     = "https://himalayas.app"
	himalayasMaxItems = 100
)

type Himalayas struct {
	*Base
	APIURL string
}

func NewHimalayas(opts Options) *Himalayas {
	return &Himalayas{Base: newBase("Himalayas", opts, false), APIURL: himalayasSite + "/jobs/api"}
}

type himalayasItem struct {
	Title           string   `json:"title"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Excerpt         string   `json:"excerpt"`
	Company         any      `json:"company"`
	CompanyName     string   `json:"companyName"`
	ApplicationLink string   `json:"applicationLink"`
	URL             string   `json:"url"`
	GUID            string   `json:"guid"`
	Slug            string   `json:"slug"`
	Location        any      `json:"location"`
	LocationRestr   []string `json:"locationRestrictions"`
	Categories      []string `json:"categories"`
	Skills          []string `json:"skills"`
	Seniority       any      `json:"seniority"`
	PubDate         string   `json:"pubDate"`
	MinSalary       float64  `json:"minSalary"`
	MaxSalary       float64  `json:"maxSalary"`
	Currency        string   `json:"currency"`
}

// Fetch reads the jobs API, which answers either with a list or with
// an object holding the list under "jobs".
func (h *Himalayas) Fetch(ctx context.Context, limit int) []jobs.Posting {
	out := h.newBatch(limit)

	var raw any
	if err := h.getJSON(ctx, h.APIURL, nil, &raw); err != nil {
		h.logger.Warn("fetching jobs failed", zap.Error(err))
		return out.Postings()
	}

	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case map[string]any:
		entries, _ = v["jobs"].([]any)
	}
	if len(entries) > himalayasMaxItems {
		entries = entries[:himalayasMaxItems]
	}

	for _, entry := range entries {
		if out.Full() {
			break
		}
		var item himalayasItem
		if err := decodeLoose(entry, &item); err != nil {
			h.logger.Debug("skipping malformed item", zap.Error(err))
			continue
		}

		link := firstNonEmpty(item.ApplicationLink, item.URL, item.GUID)
		if link == "" && item.Slug != "" {
			link = fmt.Sprintf("%s/jobs/%s", himalayasSite, item.Slug)
		}
		skills := item.Categories
		if len(skills) == 0 {
			skills = item.Skills
		}

		out.Add(ctx, jobs.Posting{
			Title:           firstNonEmpty(item.Title, item.Name),
			Company:         himalayasCompany(item),
			Location:        firstNonEmpty(looseString(item.Location), strings.Join(item.LocationRestr, ", ")),
			Link:            link,
			Description:     HTMLToText(firstNonEmpty(item.Description, item.Excerpt)),
			Date:            item.PubDate,
			Salary:          formatSalary(item.MinSalary, item.MaxSalary, currencySymbol(item.Currency)),
			JobType:         jobs.ModeRemote,
			ExperienceLevel: looseString(item.Seniority),
			Skills:          skills,
		})
	}

	return out.Postings()
}

func himalayasCompany(item himalayasItem) string {
	if m, ok := item.Company.(map[string]any); ok {
		if name, ok := m["name"].(string); ok && name != "" {
			return name
		}
	}
	if s, ok := item.Company.(string); ok && s != "" {
		return s
	}
	return item.CompanyName
}

// looseString flattens a string or a list of strings.
func looseString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "", "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	default:
		return strings.ToUpper(code) + " "
	}
}
