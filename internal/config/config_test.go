package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/config"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/version"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enricher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, version.Rules, cfg.RulesVersion)
	assert.Equal(t, 3, cfg.Contract.BulletCount)
	assert.True(t, cfg.Generation.Repair)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Generation.Model, cfg.Generation.Model)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := writeFile(t, `
input: catalogo.csv
workers: 4
generation:
  model: qwen2.5:7b
  read_timeout: 90s
  repair: false
classifier:
  domain: footwear
cache:
  backend: sqlite
  path: cache.db
contract:
  faq_enabled: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "catalogo.csv", cfg.Input)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "qwen2.5:7b", cfg.Generation.Model)
	assert.Equal(t, 90*time.Second, cfg.Generation.ReadTimeout)
	assert.False(t, cfg.Generation.Repair)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Generation.ConnectTimeout)
	assert.Equal(t, "footwear", cfg.Classifier.Domain)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.True(t, cfg.Contract.FAQEnabled)
	assert.Equal(t, 3, cfg.Contract.FAQMax)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "workers: 2\ngeneration:\n  model: from-file\n")
	t.Setenv("ENRICHER_WORKERS", "6")
	t.Setenv("ENRICHER_MODEL", "from-env")
	t.Setenv("ENRICHER_GENERATION", "false")
	t.Setenv("ENRICHER_READ_TIMEOUT", "15s")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, "from-env", cfg.Generation.Model)
	assert.False(t, cfg.Generation.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Generation.ReadTimeout)
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "unknown key", body: "wrokers: 2\n", want: "field wrokers not found"},
		{name: "bad env int", env: map[string]string{"ENRICHER_WORKERS": "many"}, want: "invalid ENRICHER_WORKERS"},
		{name: "zero workers", body: "workers: 0\n", want: "workers must be >= 1"},
		{name: "unknown domain", body: "classifier:\n  domain: furniture\n", want: `classifier.domain "furniture"`},
		{name: "gemini without key", body: "generation:\n  backend: gemini\n", want: "GEMINI_API_KEY is required"},
		{name: "unknown backend", body: "generation:\n  backend: openai\n", want: `generation.backend "openai"`},
		{name: "broken contract", body: "contract:\n  tags_min: 12\n  tags_max: 4\n", want: "invalid contract"},
		{name: "bad cache backend", body: "cache:\n  backend: redis\n", want: `cache.backend "redis"`},
		{name: "nan temperature", body: "generation:\n  temperature: .nan\n", want: "generation.temperature must be in [0,2]"},
		{name: "nan threshold", body: "classifier:\n  threshold: .nan\n", want: "classifier.threshold must be in [0,1]"},
		{name: "nan contract threshold", body: "contract:\n  duplicate_threshold: .nan\n", want: "duplicate_threshold must be in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeFile(t, tt.body)
			}
			_, err := config.Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestGeminiKeyFromEnv(t *testing.T) {
	path := writeFile(t, "generation:\n  backend: gemini\n  model: gemini-2.5-flash\n")
	t.Setenv("GEMINI_API_KEY", "k-123")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.Generation.APIKey)
}
