package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/seo-tools/trendtags/internal/dispatch"
	"github.com/seo-tools/trendtags/internal/hashtags/extract"
	"github.com/seo-tools/trendtags/internal/providers"
)

// Mode selects how queries are scheduled.
type Mode string

const (
	// ModeSequential processes one query at a time and, within a query, one provider at a time.
	ModeSequential Mode = "sequential"

	// ModeParallel runs queries on a bounded worker pool.
	ModeParallel Mode = "parallel"
)

const (
	// DefaultTopN is the length of the top list.
	DefaultTopN = 5

	// WebWeight is the default weight of web-search sources.
	WebWeight = 1

	// SocialWeight is the default weight of social sources.
	SocialWeight = 2
)

// ParseMode accepts "sequential" or "parallel"; empty selects sequential.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeParallel:
		return ModeParallel, nil
	}
	return "", fmt.Errorf("invalid aggregation mode %q (expected sequential or parallel)", s)
}

// Source binds a provider to its extraction profile and weight.
type Source struct {
	Provider providers.Provider
	Profile  extract.Profile
	Weight   int
}

// DefaultWeight returns the conventional weight for a profile: social profiles count double.
func DefaultWeight(profile extract.Profile) int {
	if profile == nil || profile.Name() == extract.WebSearch.Name() {
		return WebWeight
	}
	return SocialWeight
}

// Config is fixed for the lifetime of an Aggregator.
type Config struct {
	Sources     []Source
	Retry       providers.RetryPolicy
	TopN        int
	Mode        Mode
	Workers     int
	CallTimeout time.Duration

	// CaseFold merges tokens differing only in case, keeping the first spelling seen.
	CaseFold bool
}

// DefaultConfig returns a sequential configuration with the default retry policy and no sources.
func DefaultConfig() Config {
	return Config{
		Retry:       providers.DefaultRetryPolicy(),
		TopN:        DefaultTopN,
		Mode:        ModeSequential,
		Workers:     dispatch.DefaultWorkers,
		CallTimeout: dispatch.DefaultCallTimeout,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no providers configured")
	}
	for i, s := range c.Sources {
		if s.Provider == nil {
			return fmt.Errorf("source %d: provider is nil", i)
		}
		if s.Profile == nil {
			return fmt.Errorf("source %q: extraction profile is nil", s.Provider.Name())
		}
		if s.Weight < 0 {
			return fmt.Errorf("source %q: weight must not be negative, got %d", s.Provider.Name(), s.Weight)
		}
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.TopN < 0 {
		return fmt.Errorf("top_n must not be negative, got %d", c.TopN)
	}
	return nil
}
