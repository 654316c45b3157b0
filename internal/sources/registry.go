package sources

import (
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/config"
	"github.com/spigell/ml-job-radar/internal/logger"
)

var constructors = map[string]func(Options) Adapter{
	"remoteok":      func(o Options) Adapter { return NewRemoteOK(o) },
	"jobicy":        func(o Options) Adapter { return NewJobicy(o) },
	"arbeitnow":     func(o Options) Adapter { return NewArbeitnow(o) },
	"findwork":      func(o Options) Adapter { return NewFindwork(o) },
	"himalayas":     func(o Options) Adapter { return NewHimalayas(o) },
	"ycombinator":   func(o Options) Adapter { return NewYCombinator(o) },
	"hackernews":    func(o Options) Adapter { return NewHackerNews(o) },
	"github":        func(o Options) Adapter { return NewGitHub(o) },
	"stackoverflow": func(o Options) Adapter { return NewStackOverflow(o) },
	"linkedin":      func(o Options) Adapter { return NewLinkedIn(o) },
	"indeed":        func(o Options) Adapter { return NewIndeed(o) },
	"builtin":       func(o Options) Adapter { return NewBuiltIn(o) },
}

// Build creates adapters for the given names in order. Unknown names are
// logged and skipped.
func Build(names []string, opts Options) []Adapter {
	log := logger.OrNop(opts.Logger)

	adapters := make([]Adapter, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		newAdapter, ok := constructors[name]
		if !ok {
			log.Warn("unknown source, skipping", zap.String("source", name))
			continue
		}
		adapters = append(adapters, newAdapter(opts))
	}
	return adapters
}

// OptionsFromConfig maps the sources section of cfg to adapter options.
func OptionsFromConfig(cfg *config.Config, log *zap.Logger) Options {
	delayMin, delayMax := cfg.Sources.DelayBounds()
	return Options{
		Logger:            log,
		Timeout:           cfg.Sources.RequestTimeout,
		DelayMin:          delayMin,
		DelayMax:          delayMax,
		ExcludedCompanies: cfg.ExcludedCompanies,
		SearchKeywords:    cfg.Sources.SearchKeywords,
	}
}
