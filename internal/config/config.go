// Package config loads the enricher configuration: defaults, then an optional YAML file, then
// environment overrides (a .env file in the working directory is read first).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/cache"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/version"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Config is the full run configuration. It is a value type: components receive copies.
type Config struct {
	Input  string `yaml:"input" json:"input"`
	Output Output `yaml:"output" json:"output"`

	Language     string `yaml:"language" json:"language"`
	RulesVersion string `yaml:"rules_version" json:"rules_version"`
	Workers      int    `yaml:"workers" json:"workers"`

	Generation Generation      `yaml:"generation" json:"generation"`
	Classifier Classifier      `yaml:"classifier" json:"classifier"`
	Cache      Cache           `yaml:"cache" json:"cache"`
	Contract   schema.Contract `yaml:"contract" json:"contract"`
}

// Output names the files a run writes. Empty optional paths are skipped.
type Output struct {
	Path       string `yaml:"path" json:"path"`
	ErrorsPath string `yaml:"errors_path" json:"errors_path"`
	CSVPath    string `yaml:"csv_path,omitempty" json:"csv_path,omitempty"`
	PagesDir   string `yaml:"pages_dir,omitempty" json:"pages_dir,omitempty"`
}

// Generation configures the text-generation backend.
type Generation struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Backend string `yaml:"backend" json:"backend"`
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	// APIKey is only read from the environment and never serialized.
	APIKey string `yaml:"-" json:"-"`

	Temperature     float64       `yaml:"temperature" json:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens" json:"max_output_tokens"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	JSONMode        bool          `yaml:"json_mode" json:"json_mode"`
	Repair          bool          `yaml:"repair" json:"repair"`

	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" json:"rate_limit_rps"`
}

// Classifier configures domain classification.
type Classifier struct {
	// Domain is "auto" or the name of a domain forced for every record.
	Domain          string        `yaml:"domain" json:"domain"`
	Threshold       float64       `yaml:"threshold" json:"threshold"`
	UseGeneration   bool          `yaml:"use_generation" json:"use_generation"`
	MaxOutputTokens int           `yaml:"max_output_tokens" json:"max_output_tokens"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
}

// Cache selects the enrichment cache backend and location.
type Cache struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Input: "productos.xml",
		Output: Output{
			Path:       "productos_enriquecidos.json",
			ErrorsPath: "errores_enriquecimiento.json",
		},
		Language:     "es",
		RulesVersion: version.Rules,
		Workers:      1,
		Generation: Generation{
			Enabled:         true,
			Backend:         BackendOllama,
			Model:           "llama3.1:8b",
			Temperature:     0.2,
			MaxOutputTokens: 700,
			ConnectTimeout:  10 * time.Second,
			ReadTimeout:     240 * time.Second,
			JSONMode:        true,
			Repair:          true,
			MaxRetries:      1,
			RetryBackoff:    2 * time.Second,
		},
		Classifier: Classifier{
			Domain:          schema.DomainModeAuto,
			Threshold:       0.70,
			UseGeneration:   true,
			MaxOutputTokens: 160,
			ReadTimeout:     60 * time.Second,
		},
		Cache: Cache{
			Backend: cache.BackendFile,
			Path:    "cache_enriquecimiento.json",
		},
		Contract: schema.DefaultContract(),
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path is empty) and
// the environment, and validates the result.
func Load(path string) (Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := env("ENRICHER_INPUT"); v != "" {
		cfg.Input = v
	}
	if v := env("ENRICHER_OUTPUT"); v != "" {
		cfg.Output.Path = v
	}
	if v := env("ENRICHER_BACKEND"); v != "" {
		cfg.Generation.Backend = v
	}
	if v := env("ENRICHER_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := env("ENRICHER_BASE_URL"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := env("ENRICHER_DOMAIN"); v != "" {
		cfg.Classifier.Domain = v
	}
	if v := env("ENRICHER_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := env("ENRICHER_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := env("GEMINI_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
	}

	var err error
	if cfg.Workers, err = envInt("ENRICHER_WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.Generation.Enabled, err = envBool("ENRICHER_GENERATION", cfg.Generation.Enabled); err != nil {
		return err
	}
	if cfg.Generation.Temperature, err = envFloat("ENRICHER_TEMPERATURE", cfg.Generation.Temperature); err != nil {
		return err
	}
	if cfg.Generation.MaxRetries, err = envInt("ENRICHER_MAX_RETRIES", cfg.Generation.MaxRetries); err != nil {
		return err
	}
	if cfg.Generation.ReadTimeout, err = envDuration("ENRICHER_READ_TIMEOUT", cfg.Generation.ReadTimeout); err != nil {
		return err
	}
	if cfg.Generation.RateLimitRPS, err = envFloat("ENRICHER_RATE_LIMIT_RPS", cfg.Generation.RateLimitRPS); err != nil {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Output.Path) == "" {
		problems = append(problems, "output.path is required")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be >= 1")
	}
	if strings.TrimSpace(c.RulesVersion) == "" {
		problems = append(problems, "rules_version is required")
	}

	g := c.Generation
	switch g.Backend {
	case BackendOllama, BackendGemini:
	default:
		problems = append(problems, fmt.Sprintf("generation.backend %q is not one of ollama, gemini", g.Backend))
	}
	if g.Enabled && strings.TrimSpace(g.Model) == "" {
		problems = append(problems, "generation.model is required when generation is enabled")
	}
	if g.Enabled && g.Backend == BackendGemini && strings.TrimSpace(g.APIKey) == "" {
		problems = append(problems, "GEMINI_API_KEY is required for the gemini backend")
	}
	// Range checks are negated so NaN fails them.
	if !(g.Temperature >= 0 && g.Temperature <= 2) {
		problems = append(problems, "generation.temperature must be in [0,2]")
	}
	if g.MaxOutputTokens <= 0 {
		problems = append(problems, "generation.max_output_tokens must be > 0")
	}
	if g.ConnectTimeout <= 0 || g.ReadTimeout <= 0 {
		problems = append(problems, "generation timeouts must be > 0")
	}
	if g.MaxRetries < 0 {
		problems = append(problems, "generation.max_retries must be >= 0")
	}
	if g.RetryBackoff < 0 {
		problems = append(problems, "generation.retry_backoff must be >= 0")
	}
	if !(g.RateLimitRPS >= 0) || math.IsInf(g.RateLimitRPS, 0) {
		problems = append(problems, "generation.rate_limit_rps must be >= 0")
	}

	cl := c.Classifier
	if mode := schema.NormalizeDomainMode(cl.Domain); mode != schema.DomainModeAuto {
		if _, ok := catalog.ParseDomain(mode); !ok {
			problems = append(problems, fmt.Sprintf("classifier.domain %q is not auto or a known domain", cl.Domain))
		}
	}
	if !(cl.Threshold >= 0 && cl.Threshold <= 1) {
		problems = append(problems, "classifier.threshold must be in [0,1]")
	}

	switch c.Cache.Backend {
	case cache.BackendFile, cache.BackendSQLite, cache.BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("cache.backend %q is not one of file, sqlite, memory", c.Cache.Backend))
	}
	if c.Cache.Backend != cache.BackendMemory && strings.TrimSpace(c.Cache.Path) == "" {
		problems = append(problems, "cache.path is required")
	}

	if err := c.Contract.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func envInt(name string, fallback int) (int, error) {
	v := env(name)
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func envFloat(name string, fallback float64) (float64, error) {
	v := env(name)
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := env(name)
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := env(name)
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}
