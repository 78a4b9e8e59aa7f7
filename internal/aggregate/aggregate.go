// Package aggregate runs candidate queries against weighted providers and ranks the hashtags found.
package aggregate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/seo-tools/trendtags/internal/dispatch"
	"github.com/seo-tools/trendtags/internal/hashtags/extract"
	"github.com/seo-tools/trendtags/internal/hashtags/normalize"
	"github.com/seo-tools/trendtags/internal/providers"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Result is the outcome of one aggregation run.
type Result struct {
	TopN            []string      `json:"top"`
	Ranking         []Ranked      `json:"ranking"`
	TotalUnique     int           `json:"total_unique"`
	Queries         int           `json:"queries"`
	TotalElapsed    time.Duration `json:"total_elapsed"`
	AveragePerQuery time.Duration `json:"average_per_query"`
}

// Aggregator ranks hashtags across sources.
type Aggregator struct {
	cfg    Config
	client *providers.RetryingClient
	logger *logrus.Logger
	now    func() time.Time
}

// New validates cfg and creates an Aggregator. opts customise the retrying client.
func New(cfg Config, logger *logrus.Logger, opts ...providers.RetryOption) (*Aggregator, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeSequential
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregation config: %w", err)
	}
	cfg.Sources = append([]Source(nil), cfg.Sources...)

	return &Aggregator{
		cfg:    cfg,
		client: providers.NewRetryingClient(cfg.Retry, logger, opts...),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Config returns the aggregator's configuration.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// weighted is one token occurrence credited with its source's weight.
type weighted struct {
	token  string
	weight int
}

// contribution is everything one query adds to the tally.
type contribution struct {
	tokens    []weighted
	succeeded int
}

// Run processes queries and returns the ranking. Provider failures are logged and skipped;
// Run itself never fails. An empty query list returns an empty result without calling any provider.
func (a *Aggregator) Run(ctx context.Context, queries []string) Result {
	start := a.now()
	if len(queries) == 0 {
		return Result{TopN: []string{}, Ranking: []Ranked{}}
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNameAggregate,
		attribute.Int(telemetry.AttrAggregateQueries, len(queries)),
		attribute.String(telemetry.AttrAggregateMode, string(a.cfg.Mode)),
	)

	a.logger.WithFields(logrus.Fields{
		"queries": len(queries),
		"sources": len(a.cfg.Sources),
		"mode":    a.cfg.Mode,
	}).Info("Starting hashtag search")

	t := newTally(a.cfg.CaseFold)
	switch a.cfg.Mode {
	case ModeParallel:
		a.runParallel(ctx, queries, t)
	default:
		a.runSequential(ctx, queries, t)
	}

	elapsed := a.now().Sub(start)
	ranking := t.ranking()
	topN := a.cfg.TopN
	if topN == 0 {
		topN = DefaultTopN
	}
	top := make([]string, 0, min(topN, len(ranking)))
	for _, r := range ranking[:min(topN, len(ranking))] {
		top = append(top, r.Hashtag)
	}

	result := Result{
		TopN:            top,
		Ranking:         ranking,
		TotalUnique:     t.len(),
		Queries:         len(queries),
		TotalElapsed:    elapsed,
		AveragePerQuery: elapsed / time.Duration(len(queries)),
	}

	span.SetAttributes(attribute.Int(telemetry.AttrAggregateUnique, result.TotalUnique))
	telemetry.EndSpan(span, nil)
	telemetry.RecordAggregateRun(ctx, string(a.cfg.Mode), result.TotalUnique, elapsed.Seconds())

	a.logger.WithFields(logrus.Fields{
		"total_unique":    result.TotalUnique,
		"total_duration":  elapsed.Round(10 * time.Millisecond).String(),
		"avg_per_query":   result.AveragePerQuery.Round(10 * time.Millisecond).String(),
		"top":             result.TopN,
		"queries_handled": len(queries),
	}).Info("Hashtag search complete")

	return result
}

func (a *Aggregator) runSequential(ctx context.Context, queries []string, t *tally) {
	for i, q := range queries {
		if ctx.Err() != nil {
			a.logger.WithError(ctx.Err()).Warn("Aggregation cancelled, returning partial results")
			return
		}
		qStart := a.now()
		c := a.runQuery(ctx, q)
		a.merge(t, q, c)
		a.logProgress(q, i+1, len(queries), a.now().Sub(qStart))
	}
}

func (a *Aggregator) runParallel(ctx context.Context, queries []string, t *tally) {
	var done atomic.Int32
	opts := dispatch.Options{Workers: a.cfg.Workers, CallTimeout: a.cfg.CallTimeout}

	results := dispatch.FetchAll(ctx, a.logger, queries, opts, func(ctx context.Context, q string) (*contribution, error) {
		qStart := a.now()
		c := a.runQuery(ctx, q)
		a.logProgress(q, int(done.Add(1)), len(queries), a.now().Sub(qStart))
		return c, nil
	})

	// merge in input order so ties break the same way as in sequential mode
	for _, q := range queries {
		c, ok := results[q]
		if !ok {
			continue
		}
		delete(results, q)
		if c == nil {
			a.logger.WithField("query", q).Warn("Query produced no result")
			continue
		}
		a.merge(t, q, c)
	}
}

// runQuery calls every source for q, one at a time.
func (a *Aggregator) runQuery(ctx context.Context, q string) *contribution {
	c := &contribution{}
	for _, src := range a.cfg.Sources {
		handle, ok := a.client.Invoke(ctx, src.Provider, q)
		if !ok {
			continue
		}
		results, ok := a.client.Fetch(ctx, src.Provider, handle)
		if !ok {
			continue
		}
		c.succeeded++

		for _, r := range results {
			for _, token := range extract.Extract(src.Profile, r) {
				c.tokens = append(c.tokens, weighted{token: token, weight: src.Weight})
			}
		}
	}
	return c
}

func (a *Aggregator) merge(t *tally, q string, c *contribution) {
	if c.succeeded == 0 {
		a.logger.WithField("query", q).Warn("All providers failed for query, skipping")
		return
	}
	for _, w := range c.tokens {
		t.add(w.token, w.weight)
	}
}

func (a *Aggregator) logProgress(q string, i, n int, took time.Duration) {
	a.logger.WithFields(logrus.Fields{
		"query":    q,
		"progress": fmt.Sprintf("%d/%d", i, n),
		"duration": took.Round(10 * time.Millisecond).String(),
	}).Infof("Processed '%s' (%d/%d) in %.2fs", normalize.SearchPhrase(q), i, n, took.Seconds())
}
