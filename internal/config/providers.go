package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/seo-tools/trendtags/internal/hashtags/extract"
	"github.com/seo-tools/trendtags/internal/providers/apify"
	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindApify      = "apify"
	KindBrave      = "brave"
	KindSearXNG    = "searxng"
	KindDuckDuckGo = "duckduckgo"
)

// Built-in Apify actors selectable by name.
var builtinActors = map[string]apify.ActorSpec{
	"google-search":     apify.GoogleSearch,
	"tweet-scraper":     apify.TweetScraper,
	"instagram-hashtag": apify.InstagramHashtag,
}

// ProviderSpec defines one trending source.
type ProviderSpec struct {
	Name    string `yaml:"name" json:"name"`
	Kind    string `yaml:"kind" json:"kind"`
	Profile string `yaml:"profile" json:"profile"`
	// Weight of 0 selects the profile default (web 1, social 2).
	Weight  int   `yaml:"weight,omitempty" json:"weight,omitempty"`
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	QueryTemplate string `yaml:"query_template,omitempty" json:"query_template,omitempty"`

	// Builtin names a predefined Apify actor; Actor defines a custom one. Apify only.
	Builtin string           `yaml:"builtin,omitempty" json:"builtin,omitempty"`
	Actor   *apify.ActorSpec `yaml:"actor,omitempty" json:"actor,omitempty"`

	// Endpoint overrides the API root for the provider.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// IsEnabled reports whether the spec is active; unset means enabled.
func (p ProviderSpec) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// ActorSpec resolves the Apify actor for an apify provider.
func (p ProviderSpec) ActorSpec() (apify.ActorSpec, error) {
	if p.Actor != nil {
		spec := *p.Actor
		if p.QueryTemplate != "" {
			spec.QueryTemplate = p.QueryTemplate
		}
		return spec, nil
	}
	spec, ok := builtinActors[p.Builtin]
	if !ok {
		return apify.ActorSpec{}, fmt.Errorf("provider %q: unknown builtin actor %q", p.Name, p.Builtin)
	}
	if p.QueryTemplate != "" {
		spec.QueryTemplate = p.QueryTemplate
	}
	return spec, nil
}

// Validate checks the spec in isolation.
func (p ProviderSpec) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("provider name is required")
	}
	if _, err := extract.ProfileByName(p.Profile); err != nil {
		return fmt.Errorf("provider %q: %w", p.Name, err)
	}
	if p.Weight < 0 {
		return fmt.Errorf("provider %q: weight must not be negative", p.Name)
	}

	switch p.Kind {
	case KindApify:
		if p.Actor == nil && p.Builtin == "" {
			return fmt.Errorf("provider %q: apify providers need builtin or actor", p.Name)
		}
		if p.Actor != nil && (p.Actor.Actor == "" || p.Actor.QueryField == "") {
			return fmt.Errorf("provider %q: actor needs actor and query_field", p.Name)
		}
		if _, err := p.ActorSpec(); err != nil {
			return err
		}
	case KindBrave, KindSearXNG, KindDuckDuckGo:
		if p.Actor != nil || p.Builtin != "" {
			return fmt.Errorf("provider %q: actor settings only apply to apify providers", p.Name)
		}
	default:
		return fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
	}
	return nil
}

type providersFile struct {
	Providers []ProviderSpec `yaml:"providers"`
}

// LoadProviders reads provider definitions from a YAML file.
func LoadProviders(path string) ([]ProviderSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file %s: %w", path, err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s defines no providers", path)
	}
	return file.Providers, nil
}

// DefaultProviders derives provider specs from credentials present in cfg.
// Social Apify actors are only added when cfg.SocialSources is set.
func DefaultProviders(cfg Config) []ProviderSpec {
	var specs []ProviderSpec
	if cfg.ApifyToken != "" {
		specs = append(specs, ProviderSpec{Name: "apify-web", Kind: KindApify, Profile: "web", Builtin: "google-search"})
		if cfg.SocialSources {
			specs = append(specs,
				ProviderSpec{Name: "apify-microblog", Kind: KindApify, Profile: "microblog", Builtin: "tweet-scraper"},
				ProviderSpec{Name: "apify-photo", Kind: KindApify, Profile: "photo", Builtin: "instagram-hashtag"},
			)
		}
	}
	if cfg.BraveAPIKey != "" {
		specs = append(specs, ProviderSpec{Name: "brave", Kind: KindBrave, Profile: "web"})
	}
	if cfg.SearXNG.BaseURL != "" {
		specs = append(specs, ProviderSpec{Name: "searxng", Kind: KindSearXNG, Profile: "web"})
	}
	if cfg.EnableDuckDuckGo {
		specs = append(specs, ProviderSpec{Name: "duckduckgo", Kind: KindDuckDuckGo, Profile: "web"})
	}
	return specs
}
