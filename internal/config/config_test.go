package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, SetDefaults(v))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./resume.txt", cfg.ResumeFile)
	assert.Equal(t, AllSources, cfg.Sources.Enabled)
	assert.Equal(t, 50, cfg.Sources.MaxJobsPerSource)
	assert.Equal(t, 30*time.Second, cfg.Sources.RequestTimeout)
	assert.Equal(t, MaxWorkers, cfg.Sources.Workers)
	assert.Equal(t, 5, cfg.Thresholds.MinRelevance)
	assert.Equal(t, 5.0, cfg.Thresholds.MinCombined)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "llama3", cfg.AI.Model)
	assert.Len(t, cfg.Sources.SearchKeywords, 8)

	minDelay, maxDelay := cfg.Sources.DelayBounds()
	assert.Equal(t, time.Second, minDelay)
	assert.Equal(t, 3*time.Second, maxDelay)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENABLED_SOURCES", "RemoteOK, hackernews ,")
	t.Setenv("USER_SKILLS", "python, pytorch")
	t.Setenv("EXCLUDED_COMPANIES", "Evil Corp")
	t.Setenv("MIN_RELEVANCE_SCORE", "7")
	t.Setenv("MIN_COMBINED_SCORE", "6.5")
	t.Setenv("GMAIL_ADDRESS", "me@example.com")
	t.Setenv("SOURCE_WORKERS", "12")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"remoteok", "hackernews"}, cfg.Sources.Enabled)
	assert.Equal(t, []string{"python", "pytorch"}, cfg.UserSkills)
	assert.Equal(t, []string{"Evil Corp"}, cfg.ExcludedCompanies)
	assert.Equal(t, 7, cfg.Thresholds.MinRelevance)
	assert.Equal(t, 6.5, cfg.Thresholds.MinCombined)
	assert.Equal(t, "me@example.com", cfg.Notify.Email.To, "notification email defaults to the sender")
	assert.True(t, cfg.Notify.Email.Enabled())
	assert.Equal(t, MaxWorkers, cfg.Sources.Workers)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ml-job-radar.yaml")
	content := strings.Join([]string{
		"data-dir: /tmp/radar",
		"sources:",
		"  enabled: [jobicy]",
		"  request-timeout: 5s",
		"ai:",
		"  provider: Gemini",
		"  model: gemini-2.5-flash",
		"notify:",
		"  telegram:",
		"    token: abc",
		"    chat-id: 42",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/radar", cfg.DataDir)
	assert.Equal(t, []string{"jobicy"}, cfg.Sources.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Sources.RequestTimeout)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.True(t, cfg.Notify.Telegram.Enabled())
}

func TestValidate(t *testing.T) {
	v := newViper(t)
	v.Set("thresholds.min-relevance", 11)
	v.Set("sources.request-delay-min", 4.0)
	v.Set("ai.provider", "openai")

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min-relevance")
	assert.Contains(t, err.Error(), "request delay")
	assert.Contains(t, err.Error(), "unsupported ai provider")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OLLAMA_MODEL=mistral\nDATA_DIR=/already/set\n"), 0o600))

	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("OLLAMA_MODEL", "")
	require.NoError(t, os.Unsetenv("OLLAMA_MODEL"))
	t.Cleanup(func() { _ = os.Unsetenv("OLLAMA_MODEL") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.AI.Model)
	assert.Equal(t, "/from/env", cfg.DataDir)
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, SplitList([]string{"a, b", " ", "c,"}))
	assert.Empty(t, SplitList(nil))
}
