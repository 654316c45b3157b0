package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ml_job_radar"

// Metrics holds per-run counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Scraped            prometheus.Counter
	New                prometheus.Counter
	Scored             prometheus.Counter
	DiscardedRelevance prometheus.Counter
	Degraded           prometheus.Counter
	Qualified          prometheus.Counter
	Persisted          prometheus.Counter
	PersistErrors      prometheus.Counter
	Duration           prometheus.Gauge
	LastRun            prometheus.Gauge
}

func NewMetrics() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry:           prometheus.NewRegistry(),
		Scraped:            counter("scraped_postings_total", "Postings returned by the aggregator."),
		New:                counter("new_postings_total", "Postings not seen in earlier runs."),
		Scored:             counter("scored_postings_total", "Postings that received a relevance score."),
		DiscardedRelevance: counter("discarded_relevance_total", "Postings dropped below the relevance threshold."),
		Degraded:           counter("degraded_postings_total", "Postings scored by the fixed fallback after a failure."),
		Qualified:          counter("qualified_postings_total", "Postings at or above the combined score threshold."),
		Persisted:          counter("persisted_postings_total", "Postings appended to the store."),
		PersistErrors:      counter("persist_errors_total", "Failed appends."),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "run_duration_seconds", Help: "Duration of the last run.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "last_run_timestamp_seconds", Help: "Completion time of the last run.",
		}),
	}
	m.registry.MustRegister(
		m.Scraped, m.New, m.Scored, m.DiscardedRelevance, m.Degraded,
		m.Qualified, m.Persisted, m.PersistErrors, m.Duration, m.LastRun,
	)
	return m
}

func (m *Metrics) finish(started, finished time.Time) {
	m.Duration.Set(finished.Sub(started).Seconds())
	m.LastRun.Set(float64(finished.Unix()))
}

// WriteToTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
