package jobs

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the operator's skill and experience representation.
// Skills are lowercase and unique.
type Profile struct {
	ResumeText      string
	Skills          []string
	ExperienceLevel string
}

// ProfileFile is the optional YAML profile document.
type ProfileFile struct {
	Skills          []string `yaml:"skills"`
	ExperienceLevel string   `yaml:"experience_level"`
}

// LoadProfileFile reads a YAML profile. A missing path yields an empty document.
func LoadProfileFile(path string) (*ProfileFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return &ProfileFile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ProfileFile{}, nil
		}
		return nil, fmt.Errorf("reading profile file %q: %w", path, err)
	}

	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing profile file %q: %w", path, err)
	}
	return &pf, nil
}

// ReadResume returns the resume text, or an empty string when the file is absent.
func ReadResume(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading resume %q: %w", path, err)
	}
	return string(data), nil
}

// NewProfile merges skill lists into a lowercase unique sorted set.
func NewProfile(resume string, level string, skillSets ...[]string) *Profile {
	var all []string
	for _, set := range skillSets {
		all = append(all, set...)
	}
	skills := dedupeLower(all)
	sort.Strings(skills)

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = InferExperienceLevel(resume)
	}

	return &Profile{
		ResumeText:      resume,
		Skills:          skills,
		ExperienceLevel: level,
	}
}

// HasSkill reports whether skill (any case) is in the profile.
func (p *Profile) HasSkill(skill string) bool {
	skill = strings.ToLower(strings.TrimSpace(skill))
	i := sort.SearchStrings(p.Skills, skill)
	return i < len(p.Skills) && p.Skills[i] == skill
}

var yearsRe = regexp.MustCompile(`(?i)(\d{1,2})\+?\s*(?:years|yrs)`)

// InferExperienceLevel maps stated years of experience, or seniority words,
// to junior, mid, senior or lead.
func InferExperienceLevel(resume string) string {
	if m := yearsRe.FindAllStringSubmatch(resume, -1); len(m) > 0 {
		best := 0
		for _, match := range m {
			if n, err := strconv.Atoi(match[1]); err == nil && n > best {
				best = n
			}
		}
		switch {
		case best >= 8:
			return "lead"
		case best >= 5:
			return "senior"
		case best >= 2:
			return "mid"
		case best > 0:
			return "junior"
		}
	}

	lower := strings.ToLower(resume)
	switch {
	case strings.Contains(lower, "principal"), strings.Contains(lower, "staff "), strings.Contains(lower, "lead "):
		return "lead"
	case strings.Contains(lower, "senior"):
		return "senior"
	case strings.Contains(lower, "junior"), strings.Contains(lower, "intern"):
		return "junior"
	}
	return "unknown"
}
