// Package sources fetches job postings from public job boards. Every adapter
// degrades to partial or empty results instead of returning errors.
package sources

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/filtering"
	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/utils"
)

// Adapter fetches up to limit standardized AI/ML postings from one source.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, limit int) []jobs.Posting
}

// Options is the outbound request configuration shared by adapters.
type Options struct {
	Logger            *zap.Logger
	HTTPClient        *http.Client
	Timeout           time.Duration
	DelayMin          time.Duration
	DelayMax          time.Duration
	Attempts          int
	ExcludedCompanies []string
	SearchKeywords    []string
	Now               func() time.Time
}

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 2
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// Base carries the request and filtering helpers every adapter composes.
type Base struct {
	name   string
	logger *zap.Logger

	HTTPClient *http.Client
	UserAgent  string

	delayMin time.Duration
	delayMax time.Duration
	retry    utils.RetryPolicy

	filterCfg *filtering.Config
	steps     []filtering.Filter
	keywords  []string
	now       func() time.Time
}

func newBase(name string, opts Options, titleOnly bool) *Base {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	keywordFilter := filtering.NewKeywords()
	if titleOnly {
		keywordFilter = filtering.NewTitleKeywords()
	}

	b := &Base{
		name:       name,
		logger:     logger.WithSource(opts.Logger, name),
		HTTPClient: client,
		UserAgent:  userAgents[rand.IntN(len(userAgents))],
		delayMin:   opts.DelayMin,
		delayMax:   opts.DelayMax,
		filterCfg: &filtering.Config{
			ExcludedCompanies: opts.ExcludedCompanies,
		},
		steps:    []filtering.Filter{keywordFilter, filtering.NewExcludedCompanies()},
		keywords: opts.SearchKeywords,
		now:      now,
	}
	b.retry = utils.RetryPolicy{
		Attempts:   attempts,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   10 * time.Second,
		Jitter:     0.2,
		Retryable:  isRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			b.logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}
	return b
}

func (b *Base) Name() string { return b.name }

// searchKeywords returns the configured queries, or fallback when none are set.
func (b *Base) searchKeywords(fallback []string, n int) []string {
	queries := fallback
	if len(b.keywords) > 0 {
		queries = b.keywords
	}
	if n > 0 && len(queries) > n {
		queries = queries[:n]
	}
	return queries
}

// pause sleeps a random duration within the configured delay window.
func (b *Base) pause(ctx context.Context) error {
	return utils.WaitFor(ctx, utils.Jitter(b.delayMin, b.delayMax))
}

// batch accumulates accepted postings of one fetch.
type batch struct {
	base    *Base
	limit   int
	seen    map[jobs.IdentityKey]struct{}
	items   []jobs.Posting
	dropped int
}

func (b *Base) newBatch(limit int) *batch {
	return &batch{base: b, limit: limit, seen: make(map[jobs.IdentityKey]struct{})}
}

// Full reports whether the batch reached its limit.
func (c *batch) Full() bool {
	return c.limit > 0 && len(c.items) >= c.limit
}

// Add applies the AI/ML pre-filter and the excluded companies to p, then
// standardizes and keeps it. Duplicates within the batch are ignored.
func (c *batch) Add(ctx context.Context, p jobs.Posting) bool {
	if c.Full() {
		return false
	}

	kept, err := filtering.Run(ctx, c.base.filterCfg, filtering.Deps{}, c.base.steps, []jobs.Posting{p})
	if err != nil {
		c.base.logger.Warn("filtering posting failed", zap.Error(err))
		return false
	}
	if len(kept) == 0 {
		c.dropped++
		return false
	}

	p = kept[0]
	p.Source = c.base.name
	p.Standardize(c.base.now())

	key := p.Key()
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}
	c.items = append(c.items, p)
	return true
}

// Postings returns the accepted postings and logs the outcome.
func (c *batch) Postings() []jobs.Posting {
	c.base.logger.Info("source fetched",
		zap.Int("postings", len(c.items)),
		zap.Int("filtered_out", c.dropped),
	)
	return c.items
}
