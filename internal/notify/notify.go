// Package notify delivers the run digest to the operator.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/storage"
)

// TopJobs is the number of postings rendered in a digest.
const TopJobs = 10

// Digest is the outcome of one pipeline run.
type Digest struct {
	RunID       string
	Jobs        []jobs.Posting
	Persisted   int
	Stats       storage.Stats
	GeneratedAt time.Time
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, d Digest) error
}

// Top returns up to n postings ordered by combined score, keeping the digest
// order for equal scores.
func (d Digest) Top(n int) []jobs.Posting {
	sorted := append([]jobs.Posting(nil), d.Jobs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CombinedScore > sorted[j].CombinedScore
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// AvgMatch is the mean match score of the digest postings.
func (d Digest) AvgMatch() float64 {
	if len(d.Jobs) == 0 {
		return 0
	}
	sum := 0
	for _, p := range d.Jobs {
		sum += p.MatchScore
	}
	return float64(sum) / float64(len(d.Jobs))
}

// TopScore is the highest combined score of the digest.
func (d Digest) TopScore() float64 {
	top := 0.0
	for _, p := range d.Jobs {
		if p.CombinedScore > top {
			top = p.CombinedScore
		}
	}
	return top
}

// Multi fans a digest out to every notifier.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

func NewMulti(log *zap.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger.OrNop(log)}
}

func (m *Multi) Name() string { return "multi" }

// Notify calls every notifier even when one fails and joins the errors.
func (m *Multi) Notify(ctx context.Context, d Digest) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.logger.Info("notification sent", zap.String("notifier", n.Name()), zap.Int("jobs", len(d.Jobs)))
	}
	return errors.Join(errs...)
}

// Log writes the digest to the logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{logger: logger.OrNop(log)}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Notify(_ context.Context, d Digest) error {
	l.logger.Info("run digest",
		zap.String("run_id", d.RunID),
		zap.Int("qualified", len(d.Jobs)),
		zap.Int("persisted", d.Persisted),
		zap.Int("total_jobs", d.Stats.TotalJobs),
	)
	for i, p := range d.Top(TopJobs) {
		l.logger.Info("qualified posting",
			zap.Int("rank", i+1),
			zap.String("title", p.Title),
			zap.String("company", p.Company),
			zap.Float64("combined_score", p.CombinedScore),
			zap.String("link", p.Link),
		)
	}
	return nil
}
