// Package config builds the run configuration from the config file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AllSources lists every adapter name the pipeline knows about.
var AllSources = []string{
	"remoteok", "jobicy", "arbeitnow", "findwork", "himalayas", "ycombinator",
	"hackernews", "github", "stackoverflow", "linkedin", "indeed", "builtin",
}

// MaxWorkers caps concurrent source adapters.
const MaxWorkers = 5

// DefaultModel is the local model used when ai.model is not set.
const DefaultModel = "llama3"

type Config struct {
	DataDir           string   `mapstructure:"data-dir"`
	ResumeFile        string   `mapstructure:"resume-file"`
	ProfileFile       string   `mapstructure:"profile-file"`
	UserSkills        []string `mapstructure:"user-skills"`
	ExcludedCompanies []string `mapstructure:"excluded-companies"`
	ExcludeFile       string   `mapstructure:"exclude-file"`
	MetricsFile       string   `mapstructure:"metrics-file"`

	Sources    *SourcesConfig    `mapstructure:"sources"`
	Thresholds *ThresholdsConfig `mapstructure:"thresholds"`
	AI         *AIConfig         `mapstructure:"ai"`
	Notify     *NotifyConfig     `mapstructure:"notify"`
	Storage    *StorageConfig    `mapstructure:"storage"`
	Schedule   *ScheduleConfig   `mapstructure:"schedule"`
}

type SourcesConfig struct {
	Enabled          []string      `mapstructure:"enabled"`
	MaxJobsPerSource int           `mapstructure:"max-jobs-per-source"`
	RequestDelayMin  float64       `mapstructure:"request-delay-min"`
	RequestDelayMax  float64       `mapstructure:"request-delay-max"`
	RequestTimeout   time.Duration `mapstructure:"request-timeout"`
	Workers          int           `mapstructure:"workers"`
	SearchKeywords   []string      `mapstructure:"search-keywords"`
}

// DelayBounds returns the jitter window between outbound requests.
func (s *SourcesConfig) DelayBounds() (time.Duration, time.Duration) {
	return seconds(s.RequestDelayMin), seconds(s.RequestDelayMax)
}

type ThresholdsConfig struct {
	MinRelevance int     `mapstructure:"min-relevance"`
	MinCombined  float64 `mapstructure:"min-combined"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	MaxRetries   int           `mapstructure:"max-retries"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Ollama       *OllamaConfig `mapstructure:"ollama"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type OllamaConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api-key"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type NotifyConfig struct {
	Email    *EmailConfig    `mapstructure:"email"`
	Telegram *TelegramConfig `mapstructure:"telegram"`
}

type EmailConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	To           string `mapstructure:"to"`
	SMTPHost     string `mapstructure:"smtp-host"`
	SMTPPort     int    `mapstructure:"smtp-port"`
}

// Enabled reports whether an email digest can be sent.
func (e *EmailConfig) Enabled() bool {
	return e != nil && e.Address != ""
}

type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	ChatID    int64  `mapstructure:"chat-id"`
}

func (t *TelegramConfig) Enabled() bool {
	return t != nil && t.ChatID != 0 && (t.Token != "" || t.TokenFile != "")
}

type StorageConfig struct {
	RedisURL    string `mapstructure:"redis-url"`
	PostgresURL string `mapstructure:"postgres-url"`
}

type ScheduleConfig struct {
	Every time.Duration `mapstructure:"every"`
}

var envBindings = map[string]string{
	"data-dir":                    "DATA_DIR",
	"resume-file":                 "RESUME_FILE",
	"profile-file":                "PROFILE_FILE",
	"user-skills":                 "USER_SKILLS",
	"excluded-companies":          "EXCLUDED_COMPANIES",
	"exclude-file":                "EXCLUDE_FILE",
	"metrics-file":                "METRICS_FILE",
	"sources.enabled":             "ENABLED_SOURCES",
	"sources.max-jobs-per-source": "MAX_JOBS_PER_SOURCE",
	"sources.request-delay-min":   "REQUEST_DELAY_MIN",
	"sources.request-delay-max":   "REQUEST_DELAY_MAX",
	"sources.request-timeout":     "REQUEST_TIMEOUT",
	"sources.workers":             "SOURCE_WORKERS",
	"sources.search-keywords":     "SEARCH_KEYWORDS",
	"thresholds.min-relevance":    "MIN_RELEVANCE_SCORE",
	"thresholds.min-combined":     "MIN_COMBINED_SCORE",
	"ai.provider":                 "AI_PROVIDER",
	"ai.model":                    "OLLAMA_MODEL",
	"ai.max-retries":              "AI_MAX_RETRIES",
	"ai.ollama.url":               "OLLAMA_URL",
	"ai.ollama.api-key":           "OLLAMA_API_KEY",
	"ai.gemini.api-key":           "GEMINI_API_KEY",
	"ai.gemini.api-key-file":      "GEMINI_API_KEY_FILE",
	"notify.email.address":        "GMAIL_ADDRESS",
	"notify.email.password":       "GMAIL_APP_PASSWORD",
	"notify.email.to":             "NOTIFICATION_EMAIL",
	"notify.telegram.token":       "TELEGRAM_BOT_TOKEN",
	"notify.telegram.chat-id":     "TELEGRAM_CHAT_ID",
	"storage.redis-url":           "REDIS_URL",
	"storage.postgres-url":        "DATABASE_URL",
	"schedule.every":              "SCHEDULE_EVERY",
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault("data-dir", "./data")
	v.SetDefault("resume-file", "./resume.txt")
	v.SetDefault("profile-file", "")
	v.SetDefault("user-skills", []string{})
	v.SetDefault("excluded-companies", []string{})
	v.SetDefault("exclude-file", "")
	v.SetDefault("metrics-file", "")

	v.SetDefault("sources.enabled", AllSources)
	v.SetDefault("sources.max-jobs-per-source", 50)
	v.SetDefault("sources.request-delay-min", 1.0)
	v.SetDefault("sources.request-delay-max", 3.0)
	v.SetDefault("sources.request-timeout", 30*time.Second)
	v.SetDefault("sources.workers", MaxWorkers)
	v.SetDefault("sources.search-keywords", []string{
		"machine learning", "AI engineer", "data scientist", "deep learning",
		"MLOps", "NLP", "computer vision", "LLM",
	})

	v.SetDefault("thresholds.min-relevance", 5)
	v.SetDefault("thresholds.min-combined", 5.0)

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.model", DefaultModel)
	v.SetDefault("ai.max-retries", 1)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.ollama.url", "http://localhost:11434/v1")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")

	v.SetDefault("notify.email.address", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.password-file", "")
	v.SetDefault("notify.email.to", "")
	v.SetDefault("notify.email.smtp-host", "smtp.gmail.com")
	v.SetDefault("notify.email.smtp-port", 587)
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.token-file", "")
	v.SetDefault("notify.telegram.chat-id", 0)

	v.SetDefault("storage.redis-url", "")
	v.SetDefault("storage.postgres-url", "")
	v.SetDefault("schedule.every", 6*time.Hour)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", env, err)
		}
	}

	return nil
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading %s: %w", strings.Join(existing, ", "), err)
	}
	return nil
}

// Load unmarshals v into a normalized and validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg *Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg == nil {
		return nil, errors.New("config is empty")
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	if c.Sources == nil {
		c.Sources = &SourcesConfig{}
	}
	if c.Thresholds == nil {
		c.Thresholds = &ThresholdsConfig{}
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
	if c.AI.Ollama == nil {
		c.AI.Ollama = &OllamaConfig{}
	}
	if c.AI.Gemini == nil {
		c.AI.Gemini = &GeminiConfig{}
	}
	if c.Notify == nil {
		c.Notify = &NotifyConfig{}
	}
	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	if c.Schedule == nil {
		c.Schedule = &ScheduleConfig{}
	}

	c.UserSkills = SplitList(c.UserSkills)
	c.ExcludedCompanies = SplitList(c.ExcludedCompanies)
	c.Sources.SearchKeywords = SplitList(c.Sources.SearchKeywords)

	enabled := SplitList(c.Sources.Enabled)
	for i := range enabled {
		enabled[i] = strings.ToLower(enabled[i])
	}
	c.Sources.Enabled = enabled

	if c.Sources.Workers <= 0 || c.Sources.Workers > MaxWorkers {
		c.Sources.Workers = MaxWorkers
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	// the local default means nothing to Gemini, let the client pick its own
	if c.AI.Provider == "gemini" && c.AI.Model == DefaultModel {
		c.AI.Model = ""
	}

	if c.Notify.Email != nil && strings.TrimSpace(c.Notify.Email.To) == "" {
		c.Notify.Email.To = c.Notify.Email.Address
	}
}

// Validate checks ranges and combinations that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data-dir is required"))
	}
	if c.Sources.MaxJobsPerSource <= 0 {
		errs = append(errs, fmt.Errorf("sources.max-jobs-per-source must be positive, got %d", c.Sources.MaxJobsPerSource))
	}
	if c.Sources.RequestDelayMin < 0 || c.Sources.RequestDelayMax < c.Sources.RequestDelayMin {
		errs = append(errs, fmt.Errorf("invalid request delay window [%.2f, %.2f]", c.Sources.RequestDelayMin, c.Sources.RequestDelayMax))
	}
	if c.Sources.RequestTimeout <= 0 {
		errs = append(errs, errors.New("sources.request-timeout must be positive"))
	}
	if c.Thresholds.MinRelevance < 1 || c.Thresholds.MinRelevance > 10 {
		errs = append(errs, fmt.Errorf("thresholds.min-relevance must be within [1,10], got %d", c.Thresholds.MinRelevance))
	}
	if c.Thresholds.MinCombined < 0 || c.Thresholds.MinCombined > 10 {
		errs = append(errs, fmt.Errorf("thresholds.min-combined must be within [0,10], got %.1f", c.Thresholds.MinCombined))
	}
	switch c.AI.Provider {
	case "ollama", "gemini", "none", "":
	default:
		errs = append(errs, fmt.Errorf("unsupported ai provider: %s", c.AI.Provider))
	}

	return errors.Join(errs...)
}

// SplitList flattens comma separated entries and trims blanks.
func SplitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
