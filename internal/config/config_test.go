package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APIFY_API_TOKEN", "APIFY_BASE_URL", "BRAVE_API_KEY", "SEARXNG_BASE_URL", "SEARXNG_USERNAME",
	"SEARXNG_PASSWORD", "TRENDTAGS_ENABLE_DUCKDUCKGO", "TRENDTAGS_SOCIAL_SOURCES", "OPENAI_API_KEY",
	"OPENAI_BASE_URL", "OPENAI_MODEL", "TRENDTAGS_RETRIES", "TRENDTAGS_BACKOFF", "TRENDTAGS_TOP_N",
	"TRENDTAGS_MODE", "TRENDTAGS_WORKERS", "TRENDTAGS_CALL_TIMEOUT", "TRENDTAGS_CASE_FOLD",
	"TRENDTAGS_CACHE_PATH", "TRENDTAGS_CACHE_TTL", "TRENDTAGS_HISTORY_DB", "TRENDTAGS_RATE_LIMIT",
	"TRENDTAGS_PROVIDERS",
}

// isolate clears every setting and points the state directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv(StateDirEnv, dir)
	return dir
}

func TestFromEnv_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.Backoff)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, aggregate.ModeSequential, cfg.Mode)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 120*time.Second, cfg.CallTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.InDelta(t, 1.0, cfg.RateLimit, 1e-9)
	assert.False(t, cfg.CaseFold)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
	assert.Equal(t, filepath.Join(dir, "cache", "trending.json"), cfg.CachePath)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryDB)
	assert.False(t, cfg.HasLLM())
}

func TestFromEnv_Overrides(t *testing.T) {
	isolate(t)
	t.Setenv("TRENDTAGS_RETRIES", "5")
	t.Setenv("TRENDTAGS_BACKOFF", "500ms")
	t.Setenv("TRENDTAGS_CALL_TIMEOUT", "30")
	t.Setenv("TRENDTAGS_MODE", "parallel")
	t.Setenv("TRENDTAGS_WORKERS", "8")
	t.Setenv("TRENDTAGS_CASE_FOLD", "true")
	t.Setenv("TRENDTAGS_CACHE_TTL", "0")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, aggregate.ModeParallel, cfg.Mode)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.CaseFold)
	assert.Zero(t, cfg.CacheTTL)
	assert.True(t, cfg.HasLLM())

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, policy.BaseBackoff)
}

func TestFromEnv_CollectsAllErrors(t *testing.T) {
	isolate(t)
	t.Setenv("TRENDTAGS_RETRIES", "three")
	t.Setenv("TRENDTAGS_MODE", "sideways")
	t.Setenv("TRENDTAGS_CASE_FOLD", "maybe")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRENDTAGS_RETRIES")
	assert.Contains(t, err.Error(), "sideways")
	assert.Contains(t, err.Error(), "TRENDTAGS_CASE_FOLD")
}

func TestValidate_Ranges(t *testing.T) {
	isolate(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	cfg.Workers = 0
	cfg.TopN = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRENDTAGS_WORKERS")
	assert.Contains(t, err.Error(), "TRENDTAGS_TOP_N")
}

func TestLoad_DefaultProvidersFromCredentials(t *testing.T) {
	isolate(t)
	t.Setenv("APIFY_API_TOKEN", "apify-token")
	t.Setenv("BRAVE_API_KEY", "brave-key")
	t.Setenv("TRENDTAGS_SOCIAL_SOURCES", "true")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	var names []string
	for _, p := range cfg.EnabledProviders() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"apify-web", "apify-microblog", "apify-photo", "brave"}, names)
	assert.Empty(t, cfg.ProvidersFile)
}

func TestLoad_NoCredentialsMeansNoProviders(t *testing.T) {
	isolate(t)
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, cfg.EnabledProviders())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TRENDTAGS_TOP_N=7\n"), 0o600))
	// godotenv never overrides variables that are already set, including empty ones.
	require.NoError(t, os.Unsetenv("TRENDTAGS_TOP_N"))
	t.Cleanup(func() { _ = os.Unsetenv("TRENDTAGS_TOP_N") })

	cfg, err := Load(LoadOptions{EnvFiles: []string{filepath.Join(dir, "missing.env"), envPath}})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.TopN)
}

const providersYAML = `
providers:
  - name: google
    kind: apify
    profile: web
    builtin: google-search
  - name: tiktok
    kind: apify
    profile: microblog
    weight: 3
    actor:
      actor: clockworks~tiktok-scraper
      query_field: hashtags
      query_template: "{tag}"
      query_as_list: true
      input:
        resultsPerPage: 20
  - name: ddg
    kind: duckduckgo
    profile: web
    enabled: false
`

func TestLoad_ProvidersFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(providersYAML), 0o600))

	cfg, err := Load(LoadOptions{ProvidersFile: path})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ProvidersFile)
	require.Len(t, cfg.Providers, 3)

	enabled := cfg.EnabledProviders()
	require.Len(t, enabled, 2)

	google, err := enabled[0].ActorSpec()
	require.NoError(t, err)
	assert.Equal(t, "apify~google-search-scraper", google.Actor)

	tiktok, err := enabled[1].ActorSpec()
	require.NoError(t, err)
	assert.Equal(t, "clockworks~tiktok-scraper", tiktok.Actor)
	assert.Equal(t, 3, enabled[1].Weight)
	assert.Equal(t, 20, tiktok.Input["resultsPerPage"])
}

func TestLoad_DefaultProvidersPathIsUsedWhenPresent(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(DefaultProvidersPath(), []byte(providersYAML), 0o600))

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultProvidersPath(), cfg.ProvidersFile)
}

func TestLoad_ExplicitProvidersFileMustExist(t *testing.T) {
	dir := isolate(t)
	_, err := Load(LoadOptions{ProvidersFile: filepath.Join(dir, "nope.yaml")})
	assert.Error(t, err)
}

func TestProviderSpec_Validate(t *testing.T) {
	tests := []struct {
		name string
		spec ProviderSpec
		ok   bool
	}{
		{"valid builtin", ProviderSpec{Name: "a", Kind: KindApify, Profile: "web", Builtin: "google-search"}, true},
		{"valid brave", ProviderSpec{Name: "b", Kind: KindBrave, Profile: "web"}, true},
		{"missing name", ProviderSpec{Kind: KindBrave, Profile: "web"}, false},
		{"bad profile", ProviderSpec{Name: "c", Kind: KindBrave, Profile: "video"}, false},
		{"bad kind", ProviderSpec{Name: "d", Kind: "bing", Profile: "web"}, false},
		{"negative weight", ProviderSpec{Name: "e", Kind: KindBrave, Profile: "web", Weight: -1}, false},
		{"apify without actor", ProviderSpec{Name: "f", Kind: KindApify, Profile: "web"}, false},
		{"unknown builtin", ProviderSpec{Name: "g", Kind: KindApify, Profile: "web", Builtin: "nope"}, false},
		{"actor on brave", ProviderSpec{Name: "h", Kind: KindBrave, Profile: "web", Builtin: "google-search"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_DuplicateProviderNames(t *testing.T) {
	isolate(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	cfg.Providers = []ProviderSpec{
		{Name: "dup", Kind: KindBrave, Profile: "web"},
		{Name: "dup", Kind: KindSearXNG, Profile: "web"},
	}
	assert.ErrorContains(t, cfg.Validate(), "duplicate provider name")
}

func TestProviderSpec_QueryTemplateOverride(t *testing.T) {
	spec := ProviderSpec{Name: "a", Kind: KindApify, Profile: "web", Builtin: "google-search", QueryTemplate: "{phrase} trends"}
	actor, err := spec.ActorSpec()
	require.NoError(t, err)
	assert.Equal(t, "{phrase} trends", actor.QueryTemplate)
}
