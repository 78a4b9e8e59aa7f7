package apify

import (
	"context"
	"fmt"
	"maps"

	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/sirupsen/logrus"
)

// ActorSpec describes how a query becomes the input of one actor.
type ActorSpec struct {
	// Actor is the actor id, e.g. "apify~google-search-scraper".
	Actor string `yaml:"actor" json:"actor"`

	// QueryField is the input field receiving the rendered query.
	QueryField string `yaml:"query_field" json:"query_field"`

	// QueryTemplate renders the query; see providers.RenderQuery.
	QueryTemplate string `yaml:"query_template" json:"query_template"`

	// QueryAsList wraps the rendered query in a one-element list.
	QueryAsList bool `yaml:"query_as_list" json:"query_as_list"`

	// Input holds the fixed actor parameters.
	Input map[string]any `yaml:"input" json:"input"`
}

// Built-in actors.
var (
	GoogleSearch = ActorSpec{
		Actor:         "apify~google-search-scraper",
		QueryField:    "queries",
		QueryTemplate: "trending hashtags for {phrase}",
		Input: map[string]any{
			"maxPagesPerQuery":         1,
			"languageCode":             "en",
			"mobileResults":            false,
			"includeUnfilteredResults": true,
		},
	}

	TweetScraper = ActorSpec{
		Actor:         "apidojo~tweet-scraper",
		QueryField:    "searchTerms",
		QueryTemplate: "{query}",
		QueryAsList:   true,
		Input: map[string]any{
			"maxItems": 50,
			"sort":     "Latest",
		},
	}

	InstagramHashtag = ActorSpec{
		Actor:         "apify~instagram-hashtag-scraper",
		QueryField:    "hashtags",
		QueryTemplate: "{tag}",
		QueryAsList:   true,
		Input: map[string]any{
			"resultsLimit": 50,
		},
	}
)

// BuildInput returns a copy of the fixed input with the rendered query set.
func (s ActorSpec) BuildInput(query string) map[string]any {
	input := make(map[string]any, len(s.Input)+1)
	maps.Copy(input, s.Input)

	value := providers.RenderQuery(s.QueryTemplate, query)

	field := s.QueryField
	if field == "" {
		field = "queries"
	}
	if s.QueryAsList {
		input[field] = []string{value}
	} else {
		input[field] = value
	}
	return input
}

// ActorProvider runs one actor per query.
type ActorProvider struct {
	name   string
	client *Client
	spec   ActorSpec
}

// NewActorProvider creates a provider named name that runs spec through client.
func NewActorProvider(name string, client *Client, spec ActorSpec) *ActorProvider {
	return &ActorProvider{name: name, client: client, spec: spec}
}

// Name returns the provider name
func (p *ActorProvider) Name() string {
	return p.name
}

// Spec returns the actor configuration.
func (p *ActorProvider) Spec() ActorSpec {
	return p.spec
}

// Invoke starts the actor for query and waits for the run to finish.
func (p *ActorProvider) Invoke(ctx context.Context, logger *logrus.Logger, query string) (*providers.RunHandle, error) {
	run, err := p.client.StartRun(ctx, logger, p.spec.Actor, p.spec.BuildInput(query))
	if err != nil {
		return nil, err
	}

	run, err = p.client.WaitForRun(ctx, logger, run)
	if err != nil {
		return nil, err
	}

	if run.Status != StatusSucceeded {
		return nil, fmt.Errorf("actor %s run %s finished with status %s: %w", p.spec.Actor, run.ID, run.Status, providers.ErrRunFailed)
	}

	logger.WithFields(logrus.Fields{
		"provider":   p.name,
		"run_id":     run.ID,
		"dataset_id": run.DefaultDatasetID,
	}).Debug("Apify run succeeded")

	return &providers.RunHandle{
		Provider:  p.name,
		RunID:     run.ID,
		DatasetID: run.DefaultDatasetID,
		Status:    run.Status,
	}, nil
}

// Fetch reads the run's default dataset.
func (p *ActorProvider) Fetch(ctx context.Context, logger *logrus.Logger, handle *providers.RunHandle) ([]providers.Result, error) {
	if handle.DatasetID == "" {
		return nil, providers.ErrEmptyHandle
	}
	return p.client.DatasetItems(ctx, logger, handle.DatasetID)
}
