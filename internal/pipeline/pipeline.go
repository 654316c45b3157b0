// Package pipeline sequences one run: scrape, drop known postings, score and
// match, qualify and rank, persist and notify.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/filtering"
	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/matching"
	"github.com/spigell/ml-job-radar/internal/notify"
	"github.com/spigell/ml-job-radar/internal/storage"
	"github.com/spigell/ml-job-radar/internal/utils"
)

const (
	relevanceWeight = 0.4
	matchWeight     = 0.6

	degradedRelevance = 7
	degradedMatch     = 5
	degradedCombined  = 6.0
)

// degradedKeywords qualify a posting for the fixed fallback scores when
// scoring it failed.
var degradedKeywords = []string{"machine learning", "ai ", "ml ", "data scientist"}

type Aggregator interface {
	RunAll(ctx context.Context) []jobs.Posting
}

type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, p *jobs.Posting) int
}

type ProfileMatcher interface {
	MatchJob(ctx context.Context, p *jobs.Posting, profile *jobs.Profile) matching.Result
}

type Store interface {
	filtering.IdentitySource
	Append(ctx context.Context, p jobs.Posting) (bool, error)
	GetStats() storage.Stats
}

// ConfirmFunc decides whether the digest is sent. It may act on the digest,
// e.g. write it somewhere, before answering.
type ConfirmFunc func(ctx context.Context, d notify.Digest) (bool, error)

type Deps struct {
	Aggregator Aggregator
	Scorer     RelevanceScorer
	Matcher    ProfileMatcher
	Store      Store
	Notifier   notify.Notifier
	Profile    *jobs.Profile
	Logger     *zap.Logger
	Metrics    *Metrics
}

type Options struct {
	MinRelevance int
	MinCombined  float64
	ExcludeFile  string
	// TestLimit truncates the scrape, zero keeps everything.
	TestLimit  int
	SkipNotify bool
	Confirm    ConfirmFunc
}

// Report summarizes a finished run.
type Report struct {
	RunID              string
	Scraped            int
	New                int
	Scored             int
	DiscardedRelevance int
	Degraded           int
	Qualified          int
	Persisted          int
	Notified           bool
	Jobs               []jobs.Posting
	Stats              storage.Stats
	Duration           time.Duration
}

type Orchestrator struct {
	deps Deps
	opts Options

	logger   *zap.Logger
	newRunID func() string
	now      func() time.Time
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLog(deps.Logger)
	}
	if deps.Profile == nil {
		deps.Profile = jobs.NewProfile("", "")
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		logger:   logger.OrNop(deps.Logger),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

func (o *Orchestrator) Metrics() *Metrics {
	return o.deps.Metrics
}

// Run executes one pass. Only a context cancellation before scraping
// finished is returned as an error; every other failure degrades.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	started := o.now()
	report := &Report{RunID: o.newRunID()}
	log := logger.WithRun(o.logger, report.RunID)
	m := o.deps.Metrics
	defer func() {
		finished := o.now()
		report.Duration = finished.Sub(started)
		m.finish(started, finished)
	}()

	log.Info("run started")

	scraped := o.scrape(ctx, log)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run cancelled: %w", err)
	}
	report.Scraped = len(scraped)
	m.Scraped.Add(float64(len(scraped)))
	if len(scraped) == 0 {
		log.Warn("no postings scraped")
		o.notify(ctx, log, report, nil)
		return report, nil
	}

	fresh := o.dropKnown(ctx, log, scraped)
	report.New = len(fresh)
	m.New.Add(float64(len(fresh)))
	if len(fresh) == 0 {
		log.Info("no new postings")
		o.notify(ctx, log, report, nil)
		return report, nil
	}

	scored := o.scoreAll(ctx, log, fresh, report)
	qualified := o.qualify(ctx, log, scored)
	report.Qualified = len(qualified)
	m.Qualified.Add(float64(len(qualified)))
	if len(qualified) == 0 {
		log.Info("no postings passed the thresholds")
		o.notify(ctx, log, report, nil)
		return report, nil
	}

	report.Persisted = o.persist(ctx, log, qualified)
	report.Jobs = qualified
	o.notify(ctx, log, report, qualified)

	log.Info("run complete",
		zap.Int("scraped", report.Scraped),
		zap.Int("new", report.New),
		zap.Int("qualified", report.Qualified),
		zap.Int("persisted", report.Persisted),
		zap.Int("total_jobs", report.Stats.TotalJobs),
	)
	return report, nil
}

func (o *Orchestrator) scrape(ctx context.Context, log *zap.Logger) []jobs.Posting {
	scraped := o.deps.Aggregator.RunAll(ctx)

	steps := []filtering.Filter{filtering.NewLimit(o.opts.TestLimit)}
	if o.opts.TestLimit <= 0 {
		filtering.DisableByName(steps, "limit", "test mode is off")
	}

	limited, err := filtering.Run(ctx, nil, filtering.Deps{Logger: log}, steps, scraped)
	log.Debug("scrape filters", zap.Any("filters", filtering.Describe(steps)))
	if err != nil {
		log.Warn("limiting scraped postings failed", zap.Error(err))
		return scraped
	}
	return limited
}

// dropKnown removes postings already stored or dismissed by the operator.
// A failing step is skipped.
func (o *Orchestrator) dropKnown(ctx context.Context, log *zap.Logger, postings []jobs.Posting) []jobs.Posting {
	cfg := &filtering.Config{ExcludeFile: o.opts.ExcludeFile}
	deps := filtering.Deps{Logger: log, Store: o.deps.Store}

	steps := []filtering.Filter{filtering.NewHistory(), filtering.NewExcludeFile()}
	if strings.TrimSpace(o.opts.ExcludeFile) == "" {
		filtering.DisableByName(steps, "exclude_file", "exclude file is not configured")
	}

	for _, step := range steps {
		next, err := filtering.Run(ctx, cfg, deps, []filtering.Filter{step}, postings)
		if err != nil {
			log.Error("deduplication step failed, keeping postings", zap.String("step", step.Name()), zap.Error(err))
			continue
		}
		postings = next
	}

	log.Debug("deduplication filters", zap.Any("filters", filtering.Describe(steps)))
	log.Info("deduplicated against store", zap.Int("new", len(postings)))
	return postings
}

func (o *Orchestrator) scoreAll(ctx context.Context, log *zap.Logger, postings []jobs.Posting, report *Report) []jobs.Posting {
	m := o.deps.Metrics
	scored := make([]jobs.Posting, 0, len(postings))

	for i := range postings {
		p := postings[i]
		log.Debug("processing posting",
			zap.Int("n", i+1),
			zap.Int("total", len(postings)),
			zap.String("title", utils.TruncateForLog(p.Title, 50)),
		)

		kept, err := o.scoreOne(ctx, &p)
		if err != nil {
			log.Error("scoring posting failed", zap.String("title", p.Title), zap.Error(err))
			if !degrade(&p) {
				continue
			}
			report.Degraded++
			m.Degraded.Inc()
			scored = append(scored, p)
			continue
		}

		report.Scored++
		m.Scored.Inc()
		if !kept {
			report.DiscardedRelevance++
			m.DiscardedRelevance.Inc()
			continue
		}
		scored = append(scored, p)
	}

	log.Info("scored postings",
		zap.Int("scored", report.Scored),
		zap.Int("discarded_relevance", report.DiscardedRelevance),
		zap.Int("degraded", report.Degraded),
	)
	return scored
}

// scoreOne fills the scores of p. It reports false when p is below the
// relevance threshold, in which case matching never runs.
func (o *Orchestrator) scoreOne(ctx context.Context, p *jobs.Posting) (kept bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	relevance := o.deps.Scorer.ScoreRelevance(ctx, p)
	p.RelevanceScore = relevance
	if relevance < o.opts.MinRelevance {
		o.logger.Debug("below relevance threshold", zap.String("title", p.Title), zap.Int("relevance", relevance))
		return false, nil
	}

	result := o.deps.Matcher.MatchJob(ctx, p, o.deps.Profile)
	result.Apply(p)
	p.CombinedScore = CombinedScore(relevance, p.MatchScore)
	return true, nil
}

// CombinedScore weighs relevance 0.4 and match 0.6, rounded to one decimal.
func CombinedScore(relevance, match int) float64 {
	return utils.Round1(float64(relevance)*relevanceWeight + float64(match)*matchWeight)
}

// degrade applies the fixed fallback scores when the title names a core
// AI/ML role. It reports whether the posting is kept.
func degrade(p *jobs.Posting) bool {
	title := strings.ToLower(p.Title)
	for _, kw := range degradedKeywords {
		if strings.Contains(title, kw) {
			p.RelevanceScore = degradedRelevance
			p.MatchScore = degradedMatch
			p.CombinedScore = degradedCombined
			p.MatchingSkills = nil
			p.MissingSkills = nil
			return true
		}
	}
	return false
}

func (o *Orchestrator) qualify(ctx context.Context, log *zap.Logger, postings []jobs.Posting) []jobs.Posting {
	cfg := &filtering.Config{MinCombined: o.opts.MinCombined}
	steps := []filtering.Filter{filtering.NewCombinedScore()}

	qualified, err := filtering.Run(ctx, cfg, filtering.Deps{Logger: log}, steps, postings)
	if err != nil {
		log.Error("qualification failed, ranking all scored postings", zap.Error(err))
		qualified = append([]jobs.Posting(nil), postings...)
		filtering.Rank(qualified)
	}
	log.Debug("qualification filters", zap.Any("filters", filtering.Describe(steps)))
	log.Info("qualified postings", zap.Int("qualified", len(qualified)), zap.Int("scored", len(postings)))
	return qualified
}

func (o *Orchestrator) persist(ctx context.Context, log *zap.Logger, postings []jobs.Posting) int {
	m := o.deps.Metrics
	stored := 0
	for _, p := range postings {
		added, err := o.persistOne(ctx, p)
		if err != nil {
			m.PersistErrors.Inc()
			log.Error("storing posting failed", zap.String("title", p.Title), zap.Error(err))
			continue
		}
		if !added {
			log.Debug("posting already stored", zap.String("title", p.Title))
			continue
		}
		stored++
		m.Persisted.Inc()
		log.Info("stored posting",
			zap.String("title", utils.TruncateForLog(p.Title, 40)),
			zap.Float64("combined_score", p.CombinedScore),
		)
	}
	log.Info("persisted postings", zap.Int("stored", stored))
	return stored
}

// persistOne appends p, turning a panic in the store or a sink into an error.
func (o *Orchestrator) persistOne(ctx context.Context, p jobs.Posting) (added bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			added, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return o.deps.Store.Append(ctx, p)
}

func (o *Orchestrator) notify(ctx context.Context, log *zap.Logger, report *Report, qualified []jobs.Posting) {
	report.Stats = o.deps.Store.GetStats()
	if o.opts.SkipNotify {
		log.Info("notification skipped")
		return
	}

	digest := notify.Digest{
		RunID:       report.RunID,
		Jobs:        qualified,
		Persisted:   report.Persisted,
		Stats:       report.Stats,
		GeneratedAt: o.now(),
	}

	if o.opts.Confirm != nil {
		ok, err := o.opts.Confirm(ctx, digest)
		if err != nil {
			log.Error("confirmation failed, notification skipped", zap.Error(err))
			return
		}
		if !ok {
			log.Info("notification declined")
			return
		}
	}

	if err := o.deps.Notifier.Notify(ctx, digest); err != nil {
		log.Error("notification failed", zap.String("notifier", o.deps.Notifier.Name()), zap.Error(err))
		return
	}
	report.Notified = true
}
