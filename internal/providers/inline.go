package providers

import (
	"context"

	"github.com/sirupsen/logrus"
)

// OrganicResult is one search hit in the web-search payload shape.
type OrganicResult struct {
	Title       string
	URL         string
	Description string
}

// WebSearchPayload reshapes search hits into a single web-search result record
// ({"organicResults": [...]}) so the web extraction profile applies unchanged.
func WebSearchPayload(query string, hits []OrganicResult) Result {
	organic := make([]any, 0, len(hits))
	for i, h := range hits {
		organic = append(organic, map[string]any{
			"position":    i + 1,
			"title":       h.Title,
			"url":         h.URL,
			"description": h.Description,
		})
	}
	return Result{
		"searchQuery":    map[string]any{"term": query},
		"organicResults": organic,
	}
}

// InlineHandle wraps results already in hand. The handle is fetchable even with no items.
func InlineHandle(provider string, items ...Result) *RunHandle {
	if items == nil {
		items = []Result{}
	}
	return &RunHandle{Provider: provider, Status: "SUCCEEDED", Items: items}
}

// InlineFetch returns the results carried by an inline handle. Synchronous providers use it as Fetch.
func InlineFetch(_ context.Context, _ *logrus.Logger, handle *RunHandle) ([]Result, error) {
	if handle == nil || handle.Items == nil {
		return nil, ErrEmptyHandle
	}
	return handle.Items, nil
}
