// Package jobs holds the job posting model shared by every stage of the
// pipeline together with the identity and deduplication rules.
package jobs

import (
	"strconv"
	"strings"
	"time"
)

// Mode is the employment mode of a posting.
type Mode string

const (
	ModeRemote  Mode = "remote"
	ModeHybrid  Mode = "hybrid"
	ModeOnsite  Mode = "onsite"
	ModeUnknown Mode = "unknown"
)

const (
	// Unknown is the sentinel used for a missing title or company.
	Unknown = "Unknown"
	// DefaultLocation is used when a source omits the location.
	DefaultLocation = "Remote"
	// MaxDescription bounds the description length in runes.
	MaxDescription = 1000
	// DateLayout is the layout of Posting.Date.
	DateLayout = "2006-01-02"
)

// Posting is one discovered opening. The score fields are filled by the
// pipeline, never by a source adapter.
type Posting struct {
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location"`
	Link            string   `json:"link"`
	Source          string   `json:"source"`
	Description     string   `json:"description"`
	Date            string   `json:"date_posted"`
	Salary          string   `json:"salary,omitempty"`
	JobType         Mode     `json:"job_type"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Skills          []string `json:"skills,omitempty"`

	RelevanceScore int      `json:"relevance_score,omitempty"`
	MatchScore     int      `json:"match_score,omitempty"`
	CombinedScore  float64  `json:"combined_score,omitempty"`
	MatchingSkills []string `json:"matching_skills,omitempty"`
	MissingSkills  []string `json:"missing_skills,omitempty"`
	MatchSummary   string   `json:"match_summary,omitempty"`

	AddedAt string `json:"added_at,omitempty"`
}

// Key returns the identity of the posting.
func (p *Posting) Key() IdentityKey {
	return Key(p.Title, p.Company)
}

// Text is the lowercased title and description, the haystack for keyword checks.
func (p *Posting) Text() string {
	return strings.ToLower(p.Title + " " + p.Description)
}

// Standardize fills sentinels for missing fields and bounds the description.
// now supplies the default posting date.
func (p *Posting) Standardize(now time.Time) {
	p.Title = strings.Join(strings.Fields(p.Title), " ")
	p.Company = strings.Join(strings.Fields(p.Company), " ")
	p.Location = strings.TrimSpace(p.Location)
	p.Link = strings.TrimSpace(p.Link)
	p.Salary = strings.TrimSpace(p.Salary)
	p.Description = strings.TrimSpace(p.Description)

	if p.Title == "" {
		p.Title = Unknown
	}
	if p.Company == "" {
		p.Company = Unknown
	}
	if p.Location == "" {
		p.Location = DefaultLocation
	}
	p.Date = normalizeDate(p.Date, now)
	if p.JobType == "" {
		p.JobType = ModeUnknown
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = "unknown"
	}

	if runes := []rune(p.Description); len(runes) > MaxDescription {
		p.Description = string(runes[:MaxDescription])
	}

	p.Skills = dedupeLower(p.Skills)
}

// DetectMode infers the employment mode from free text such as a location line.
func DetectMode(text string) Mode {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hybrid"):
		return ModeHybrid
	case strings.Contains(lower, "remote"):
		return ModeRemote
	case strings.Contains(lower, "onsite"), strings.Contains(lower, "on-site"), strings.Contains(lower, "in office"):
		return ModeOnsite
	default:
		return ModeUnknown
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	DateLayout,
}

// normalizeDate accepts the common layouts sources use, including unix
// seconds, and falls back to today.
func normalizeDate(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Format(DateLayout)
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		if secs > 1e12 {
			secs /= 1000
		}
		return time.Unix(secs, 0).UTC().Format(DateLayout)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateLayout)
		}
	}
	if len(raw) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, raw[:len(DateLayout)]); err == nil {
			return t.Format(DateLayout)
		}
	}
	return now.Format(DateLayout)
}

func dedupeLower(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
