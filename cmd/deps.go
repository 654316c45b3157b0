package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/ai"
	"github.com/spigell/ml-job-radar/internal/ai/gemini"
	"github.com/spigell/ml-job-radar/internal/ai/ollama"
	"github.com/spigell/ml-job-radar/internal/aggregator"
	"github.com/spigell/ml-job-radar/internal/config"
	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/matching"
	"github.com/spigell/ml-job-radar/internal/notify"
	"github.com/spigell/ml-job-radar/internal/pipeline"
	"github.com/spigell/ml-job-radar/internal/scoring"
	"github.com/spigell/ml-job-radar/internal/secrets"
	"github.com/spigell/ml-job-radar/internal/sources"
	"github.com/spigell/ml-job-radar/internal/storage"
)

// newGenerator returns nil for the "none" provider, which leaves the scorer
// and the matcher on their deterministic paths.
func newGenerator(ctx context.Context, cfg *config.Config, log *zap.Logger) (ai.Generator, error) {
	switch cfg.AI.Provider {
	case ai.ProviderNone:
		log.Info("inference disabled, using keyword scoring only")
		return nil, nil
	case ai.ProviderGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.AI.Gemini.APIKey,
			File:  cfg.AI.Gemini.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.AI.Model, cfg.AI.MaxRetries, log)
		if err != nil {
			return nil, fmt.Errorf("creating gemini generator: %w", err)
		}
		return generator, nil
	case ai.ProviderOllama, "":
		return ollama.New(cfg.AI.Ollama.URL, cfg.AI.Model, cfg.AI.MaxRetries, log,
			ollama.WithAPIKey(cfg.AI.Ollama.APIKey),
		), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.AI.Provider)
	}
}

// loadProfile merges resume skills, the optional YAML profile and the
// configured skill list.
func loadProfile(cfg *config.Config, log *zap.Logger) (*jobs.Profile, error) {
	resume, err := jobs.ReadResume(cfg.ResumeFile)
	if err != nil {
		return nil, err
	}
	if resume == "" {
		log.Warn("resume not found, matching on configured skills only", zap.String("path", cfg.ResumeFile))
	}

	pf, err := jobs.LoadProfileFile(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}

	profile := matching.BuildProfile(resume, pf.ExperienceLevel, cfg.UserSkills, pf.Skills)
	log.Info("profile loaded",
		zap.Int("skills", len(profile.Skills)),
		zap.String("experience_level", profile.ExperienceLevel),
		zap.Int("resume_length", len(resume)),
	)
	return profile, nil
}

// openStore opens the file store. Secondary sinks are attached only when
// withSinks is set; an unreachable sink is skipped.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger, withSinks bool) (*storage.FileStore, error) {
	var opts []storage.Option
	if withSinks {
		opts = append(opts, storage.WithSinks(newSinks(ctx, cfg.Storage, log)...))
	}

	store, err := storage.Open(cfg.DataDir, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}

func newSinks(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) []storage.Sink {
	var sinks []storage.Sink

	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		sink, err := storage.NewRedisSink(ctx, url)
		if err != nil {
			log.Warn("redis sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
		}
	}

	if url := strings.TrimSpace(cfg.PostgresURL); url != "" {
		sink, err := storage.NewPostgresSink(ctx, url)
		if err != nil {
			log.Warn("postgres sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
		}
	}

	return sinks
}

// newNotifier always includes the log notifier. A configured but incomplete
// email or telegram section is an error.
func newNotifier(cfg *config.NotifyConfig, log *zap.Logger) (notify.Notifier, error) {
	notifiers := []notify.Notifier{notify.NewLog(log)}
	var errs []error

	if cfg.Email.Enabled() {
		password, err := secrets.Load(secrets.Source{
			Name:  "email password",
			Value: cfg.Email.Password,
			File:  cfg.Email.PasswordFile,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			email, err := notify.NewEmail(notify.EmailConfig{
				Address:  cfg.Email.Address,
				Password: password,
				To:       cfg.Email.To,
				Host:     cfg.Email.SMTPHost,
				Port:     cfg.Email.SMTPPort,
			}, log)
			if err != nil {
				errs = append(errs, err)
			} else {
				notifiers = append(notifiers, email)
			}
		}
	}

	if cfg.Telegram.Enabled() {
		token, err := secrets.Load(secrets.Source{
			Name:  "telegram bot token",
			Value: cfg.Telegram.Token,
			File:  cfg.Telegram.TokenFile,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			telegram, err := notify.NewTelegram(token, cfg.Telegram.ChatID, log)
			if err != nil {
				errs = append(errs, err)
			} else {
				notifiers = append(notifiers, telegram)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(notifiers) == 1 {
		log.Info("no email or telegram configured, the digest goes to the log only")
		return notifiers[0], nil
	}
	return notify.NewMulti(log, notifiers...), nil
}

func newAggregator(cfg *config.Config, log *zap.Logger) *aggregator.Aggregator {
	adapters := sources.Build(cfg.Sources.Enabled, sources.OptionsFromConfig(cfg, log))
	log.Info("sources enabled", zap.Int("count", len(adapters)), zap.Strings("sources", cfg.Sources.Enabled))
	return aggregator.New(adapters, cfg.Sources.MaxJobsPerSource, cfg.Sources.Workers, log)
}

// radar holds everything one or more pipeline runs need.
type radar struct {
	orchestrator *pipeline.Orchestrator
	store        *storage.FileStore
}

func newRadar(ctx context.Context, cfg *config.Config, opts pipeline.Options, log *zap.Logger) (*radar, error) {
	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	profile, err := loadProfile(cfg, log)
	if err != nil {
		return nil, err
	}

	notifier, err := newNotifier(cfg.Notify, log)
	if err != nil {
		return nil, fmt.Errorf("configuring notifications: %w", err)
	}

	store, err := openStore(ctx, cfg, log, true)
	if err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(pipeline.Deps{
		Aggregator: newAggregator(cfg, log),
		Scorer:     scoring.New(generator, log, cfg.AI.MaxLogLength),
		Matcher:    matching.New(generator, log, cfg.AI.MaxLogLength),
		Store:      store,
		Notifier:   notifier,
		Profile:    profile,
		Logger:     log,
	}, opts)

	return &radar{orchestrator: orchestrator, store: store}, nil
}

func (r *radar) Close() error {
	return r.store.Close()
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		MinRelevance: cfg.Thresholds.MinRelevance,
		MinCombined:  cfg.Thresholds.MinCombined,
		ExcludeFile:  cfg.ExcludeFile,
	}
}

// writeMetrics writes the run metrics when a metrics file is configured.
func writeMetrics(r *radar, cfg *config.Config, log *zap.Logger) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := r.orchestrator.Metrics().WriteToTextfile(cfg.MetricsFile); err != nil {
		log.Warn("writing metrics failed", zap.Error(err))
		return
	}
	log.Debug("metrics written", zap.String("path", cfg.MetricsFile))
}
