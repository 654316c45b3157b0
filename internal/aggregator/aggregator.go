// Package aggregator runs source adapters on a bounded worker pool and merges
// their output into one deduplicated batch.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/sources"
)

// MaxWorkers caps concurrently running adapters.
const MaxWorkers = 5

// SourceResult is the outcome of one adapter.
type SourceResult struct {
	Source   string
	Postings []jobs.Posting
	Duration time.Duration
	Err      error
}

type Aggregator struct {
	adapters []sources.Adapter
	workers  int
	limit    int
	logger   *zap.Logger
}

// New creates an aggregator fetching up to limit postings per adapter.
// workers outside [1, MaxWorkers] is replaced by MaxWorkers.
func New(adapters []sources.Adapter, limit, workers int, log *zap.Logger) *Aggregator {
	if workers <= 0 || workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Aggregator{
		adapters: adapters,
		workers:  workers,
		limit:    limit,
		logger:   logger.OrNop(log),
	}
}

// RunAll fetches from every adapter and returns the merged postings with
// duplicates removed. The first posting of each identity wins, in adapter
// order, regardless of which adapter finished first.
func (a *Aggregator) RunAll(ctx context.Context) []jobs.Posting {
	started := time.Now()
	results := a.Collect(ctx)

	var merged []jobs.Posting
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		merged = append(merged, r.Postings...)
	}
	unique := jobs.Dedupe(merged)

	a.logger.Info("aggregated sources",
		zap.Int("sources", len(results)),
		zap.Int("failed_sources", failed),
		zap.Int("postings", len(merged)),
		zap.Int("unique", len(unique)),
		zap.Duration("duration", time.Since(started)),
	)
	return unique
}

// Collect runs the adapters and returns one result per adapter in adapter
// order. A panicking adapter yields an empty result carrying the error.
func (a *Aggregator) Collect(ctx context.Context) []SourceResult {
	results := make([]SourceResult, len(a.adapters))
	sem := make(chan struct{}, a.workers)

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		results[i].Source = adapter.Name()

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}

			results[i] = a.fetch(ctx, adapter)
		}()
	}
	wg.Wait()

	return results
}

func (a *Aggregator) fetch(ctx context.Context, adapter sources.Adapter) (result SourceResult) {
	result.Source = adapter.Name()
	started := time.Now()

	defer func() {
		result.Duration = time.Since(started)
		if r := recover(); r != nil {
			result.Postings = nil
			result.Err = fmt.Errorf("source %s panicked: %v", result.Source, r)
			a.logger.Error("source failed", zap.String("source", result.Source), zap.Error(result.Err))
		}
	}()

	a.logger.Debug("fetching source", zap.String("source", result.Source), zap.Int("limit", a.limit))
	result.Postings = adapter.Fetch(ctx, a.limit)
	return result
}
