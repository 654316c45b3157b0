package matching

import (
	"context"
	"sort"
	"strings"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

// SkillCount is one entry of a skill gap report.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// GetSkillGaps matches every posting and tallies the missing skills, most
// frequent first. Ties are ordered by name.
func (m *Matcher) GetSkillGaps(ctx context.Context, postings []jobs.Posting, profile *jobs.Profile) []SkillCount {
	counts := make(map[string]int)
	for i := range postings {
		if ctx.Err() != nil {
			break
		}
		res := m.MatchJob(ctx, &postings[i], profile)
		for _, s := range res.MissingSkills {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				counts[s]++
			}
		}
	}
	return SortCounts(counts)
}

// SortCounts orders a tally by count descending, then by name.
func SortCounts(counts map[string]int) []SkillCount {
	out := make([]SkillCount, 0, len(counts))
	for skill, n := range counts {
		out = append(out, SkillCount{Skill: skill, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}
