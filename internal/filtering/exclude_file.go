package filtering

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

// ExcludedPostings is the operator's list of dismissed postings.
type ExcludedPostings struct {
	Items []*ExcludedPosting
}

type ExcludedPosting struct {
	Title      string
	Company    string
	Link       string
	ExcludedAt time.Time
}

// ToExcluded converts postings into exclude file entries.
func ToExcluded(postings []jobs.Posting) *ExcludedPostings {
	excluded := &ExcludedPostings{}
	for _, p := range postings {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			Title:      p.Title,
			Company:    p.Company,
			Link:       p.Link,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// LoadExcludedFile reads an exclude file. A missing or empty file is an empty list.
func LoadExcludedFile(path string) (*ExcludedPostings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ExcludedPostings{}, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decoding exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

func (e *ExcludedPostings) Append(other *ExcludedPostings) {
	e.Items = append(e.Items, other.Items...)
}

func (e *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

func (e *ExcludedPostings) keys() (map[jobs.IdentityKey]struct{}, map[string]struct{}) {
	keys := make(map[jobs.IdentityKey]struct{}, len(e.Items))
	links := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		if item.Title != "" || item.Company != "" {
			keys[jobs.Key(item.Title, item.Company)] = struct{}{}
		}
		if item.Link != "" {
			links[item.Link] = struct{}{}
		}
	}
	return keys, links
}

type excludeFileFilter struct {
	path     string
	disabled bool
	reason   string
}

// NewExcludeFile creates a filter that removes postings listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, postings []jobs.Posting) ([]jobs.Posting, Step, error) {
	initial := len(postings)
	if f.path == "" {
		return postings, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	excluded, err := LoadExcludedFile(f.path)
	if err != nil {
		return postings, Step{}, fmt.Errorf("getting excluded postings from file: %w", err)
	}

	keys, links := excluded.keys()
	left, dropped := keep(postings, func(p *jobs.Posting) bool {
		if _, ok := keys[p.Key()]; ok {
			return false
		}
		_, ok := links[p.Link]
		return !ok
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding postings based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, Step{Initial: initial, Dropped: len(dropped), Left: len(left)}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
