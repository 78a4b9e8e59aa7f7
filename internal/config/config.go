// Package config builds the immutable runtime configuration from the environment,
// an optional .env file and an optional providers.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/seo-tools/trendtags/internal/cache"
	"github.com/seo-tools/trendtags/internal/dispatch"
	"github.com/seo-tools/trendtags/internal/providers"
)

// Defaults not owned by another package.
const (
	DefaultLLMModel  = "gpt-4o-mini"
	DefaultRateLimit = 1.0
	MaxWorkers       = 32
)

// SearXNGConfig holds SearXNG instance settings.
type SearXNGConfig struct {
	BaseURL  string
	Username string
	Password string
}

// LLMConfig holds the chat model settings.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Config is built once at startup and passed by value.
type Config struct {
	ApifyToken   string
	ApifyBaseURL string

	BraveAPIKey      string
	SearXNG          SearXNGConfig
	EnableDuckDuckGo bool
	SocialSources    bool

	LLM LLMConfig

	Retries     int
	Backoff     time.Duration
	TopN        int
	Mode        aggregate.Mode
	Workers     int
	CallTimeout time.Duration
	CaseFold    bool

	CachePath string
	CacheTTL  time.Duration
	HistoryDB string
	RateLimit float64

	ProvidersFile string
	Providers     []ProviderSpec
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// EnvFiles are loaded in order when they exist; existing variables are never overridden.
	EnvFiles []string
	// ProvidersFile must exist when set. When empty, TRENDTAGS_PROVIDERS or the default path is
	// tried and a missing file falls back to DefaultProviders.
	ProvidersFile string
}

// Load reads and validates the configuration.
func Load(opts LoadOptions) (Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}

	path, required := opts.ProvidersFile, true
	if path == "" {
		path, required = envString("TRENDTAGS_PROVIDERS", ""), true
	}
	if path == "" {
		path, required = DefaultProvidersPath(), false
	}

	specs, err := LoadProviders(path)
	switch {
	case err == nil:
		cfg.ProvidersFile = path
		cfg.Providers = specs
	case !required && errors.Is(err, fs.ErrNotExist):
		cfg.Providers = DefaultProviders(cfg)
	default:
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads every setting from environment variables, applying defaults.
func FromEnv() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		ApifyToken:   envString("APIFY_API_TOKEN", ""),
		ApifyBaseURL: envString("APIFY_BASE_URL", ""),
		BraveAPIKey:  envString("BRAVE_API_KEY", ""),
		SearXNG: SearXNGConfig{
			BaseURL:  envString("SEARXNG_BASE_URL", ""),
			Username: envString("SEARXNG_USERNAME", ""),
			Password: envString("SEARXNG_PASSWORD", ""),
		},
		LLM: LLMConfig{
			APIKey:  envString("OPENAI_API_KEY", ""),
			BaseURL: envString("OPENAI_BASE_URL", ""),
			Model:   envString("OPENAI_MODEL", DefaultLLMModel),
		},
		CachePath: envString("TRENDTAGS_CACHE_PATH", DefaultCachePath()),
		HistoryDB: envString("TRENDTAGS_HISTORY_DB", DefaultHistoryPath()),
	}

	var err error
	cfg.EnableDuckDuckGo, err = envBool("TRENDTAGS_ENABLE_DUCKDUCKGO", false)
	collect(err)
	cfg.SocialSources, err = envBool("TRENDTAGS_SOCIAL_SOURCES", false)
	collect(err)
	cfg.CaseFold, err = envBool("TRENDTAGS_CASE_FOLD", false)
	collect(err)

	policy := providers.DefaultRetryPolicy()
	cfg.Retries, err = envInt("TRENDTAGS_RETRIES", policy.MaxAttempts)
	collect(err)
	cfg.Backoff, err = envDuration("TRENDTAGS_BACKOFF", policy.BaseBackoff)
	collect(err)
	cfg.TopN, err = envInt("TRENDTAGS_TOP_N", aggregate.DefaultTopN)
	collect(err)
	cfg.Workers, err = envInt("TRENDTAGS_WORKERS", dispatch.DefaultWorkers)
	collect(err)
	cfg.CallTimeout, err = envDuration("TRENDTAGS_CALL_TIMEOUT", dispatch.DefaultCallTimeout)
	collect(err)
	cfg.CacheTTL, err = envDuration("TRENDTAGS_CACHE_TTL", cache.DefaultTTL)
	collect(err)
	cfg.RateLimit, err = envFloat("TRENDTAGS_RATE_LIMIT", DefaultRateLimit)
	collect(err)

	cfg.Mode, err = aggregate.ParseMode(envString("TRENDTAGS_MODE", string(aggregate.ModeSequential)))
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks ranges and provider definitions.
func (c Config) Validate() error {
	var errs []error
	if c.Retries < 1 {
		errs = append(errs, fmt.Errorf("TRENDTAGS_RETRIES must be at least 1, got %d", c.Retries))
	}
	if c.Backoff < 0 {
		errs = append(errs, fmt.Errorf("TRENDTAGS_BACKOFF must not be negative, got %s", c.Backoff))
	}
	if c.TopN < 1 {
		errs = append(errs, fmt.Errorf("TRENDTAGS_TOP_N must be at least 1, got %d", c.TopN))
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("TRENDTAGS_WORKERS must be between 1 and %d, got %d", MaxWorkers, c.Workers))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TRENDTAGS_CALL_TIMEOUT must be positive, got %s", c.CallTimeout))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("TRENDTAGS_RATE_LIMIT must be positive, got %g", c.RateLimit))
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate provider name %q", p.Name))
		}
		seen[p.Name] = struct{}{}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// RetryPolicy returns the configured retry policy.
func (c Config) RetryPolicy() providers.RetryPolicy {
	return providers.RetryPolicy{MaxAttempts: c.Retries, BaseBackoff: c.Backoff}
}

// EnabledProviders returns the provider specs that are switched on.
func (c Config) EnabledProviders() []ProviderSpec {
	out := make([]ProviderSpec, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// HasLLM reports whether an LLM API key is configured.
func (c Config) HasLLM() bool {
	return c.LLM.APIKey != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := envString(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := envString(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := envString(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

// envDuration accepts Go durations ("1m30s") or plain seconds ("90", "0.5").
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := envString(key, "")
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}
