// Package providers defines the contract for external search and social data sources and
// the retrying client the aggregator uses to call them.
package providers

import (
	"context"
	"strings"

	"github.com/seo-tools/trendtags/internal/hashtags/normalize"
	"github.com/sirupsen/logrus"
)

// Result is one opaque record of a provider result-set. Its shape is provider specific.
type Result = map[string]any

// RunHandle references a completed provider invocation whose results can be fetched.
type RunHandle struct {
	Provider  string `json:"provider"`
	RunID     string `json:"run_id,omitempty"`
	DatasetID string `json:"dataset_id,omitempty"`
	Status    string `json:"status,omitempty"`

	// Query is the query the handle was invoked for, when a wrapper needs it at fetch time.
	Query string `json:"query,omitempty"`

	// Items holds results for providers that answer synchronously.
	Items []Result `json:"-"`
}

// Provider is a pluggable search or social data source.
type Provider interface {
	// Name identifies the provider in logs, metrics and configuration.
	Name() string

	// Invoke runs the provider for a single query and returns a handle to its results.
	Invoke(ctx context.Context, logger *logrus.Logger, query string) (*RunHandle, error)

	// Fetch retrieves the result-set referenced by handle.
	Fetch(ctx context.Context, logger *logrus.Logger, handle *RunHandle) ([]Result, error)
}

// RenderQuery fills a provider query template. "{query}" is replaced with the query as given,
// "{phrase}" with the query stripped of leading '#' and "{tag}" with the phrase minus whitespace.
// An empty template yields the query.
func RenderQuery(template, query string) string {
	if template == "" {
		return query
	}
	phrase := normalize.SearchPhrase(query)
	return strings.NewReplacer(
		"{query}", query,
		"{phrase}", phrase,
		"{tag}", strings.Join(strings.Fields(phrase), ""),
	).Replace(template)
}
