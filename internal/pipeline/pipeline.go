package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/seo-tools/trendtags/internal/content"
	"github.com/seo-tools/trendtags/internal/hashtags/normalize"
	"github.com/seo-tools/trendtags/internal/history"
	"github.com/seo-tools/trendtags/internal/suggest"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// Request errors.
var (
	ErrInvalidRequest = errors.New("exactly one of url or topic is required")
	ErrNoContent      = errors.New("no content could be scraped from the URL by either scraper")
)

// Request describes one hashtag generation run.
type Request struct {
	URL   string
	Topic string

	// Keywords, when set, are used instead of extracting keywords from the content.
	Keywords []string

	// IncludeKeywords adds keywords to the validation candidates.
	IncludeKeywords bool

	// PlainQueries also searches candidates that do not start with '#'. Off, only
	// hashtag-shaped candidates reach the providers.
	PlainQueries bool

	// SelectTop asks the generator to pick the final hashtags from the full ranking.
	SelectTop bool
}

// Result is the full record of a run.
type Result struct {
	ID                  string             `json:"id"`
	URL                 string             `json:"url,omitempty"`
	Topic               string             `json:"topic,omitempty"`
	UsedKeywords        []string           `json:"used_keywords"`
	GeneratedHashtags   []string           `json:"generated_hashtags"`
	Queries             []string           `json:"queries"`
	TrendingHashtags    []string           `json:"apify_trending_hashtags"`
	Ranking             []aggregate.Ranked `json:"apify_trending_hashtags_all"`
	TotalUnique         int                `json:"apify_total_unique"`
	TotalDuration       float64            `json:"apify_total_duration"`
	AverageTimePerQuery float64            `json:"apify_avg_time_per_query"`
	Warnings            []string           `json:"warnings,omitempty"`
	Timestamp           time.Time          `json:"timestamp"`
}

// Input returns the URL or topic the run was for.
func (r *Result) Input() (kind, value string) {
	if r.URL != "" {
		return "url", r.URL
	}
	return "topic", r.Topic
}

// Pipeline runs content fetch, candidate generation, trending validation and history.
type Pipeline struct {
	content    content.Source
	generator  suggest.Generator
	aggregator *aggregate.Aggregator
	history    *history.Store
	logger     *logrus.Logger
	now        func() time.Time
}

// Deps are the collaborators of a Pipeline. Aggregator and History may be nil: without an
// aggregator trending validation is skipped with a warning, without history nothing is stored.
type Deps struct {
	Content    content.Source
	Generator  suggest.Generator
	Aggregator *aggregate.Aggregator
	History    *history.Store
	Logger     *logrus.Logger
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		content:    deps.Content,
		generator:  deps.Generator,
		aggregator: deps.Aggregator,
		history:    deps.History,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Generate runs the pipeline. Only invalid requests, empty pages and cancellation are errors;
// every other failure degrades the result and is reported in Warnings.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Topic = strings.TrimSpace(req.Topic)
	if (req.URL == "") == (req.Topic == "") {
		return nil, ErrInvalidRequest
	}

	res := &Result{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Topic:     req.Topic,
		Timestamp: p.now().UTC(),
	}
	ctx = telemetry.ContextWithRunID(ctx, res.ID)

	text := req.Topic
	if req.URL != "" {
		if p.content == nil {
			return nil, errors.New("no content source configured")
		}
		fetched, err := p.content.Fetch(ctx, req.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
		}
		if strings.TrimSpace(fetched) == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoContent, req.URL)
		}
		text = fetched
	}

	res.UsedKeywords = p.keywords(ctx, req, text, res)
	res.GeneratedHashtags = p.hashtags(ctx, res.UsedKeywords, text, res)

	candidates := make([]any, 0, len(res.UsedKeywords)+len(res.GeneratedHashtags))
	if req.IncludeKeywords {
		for _, k := range res.UsedKeywords {
			candidates = append(candidates, k)
		}
	}
	for _, h := range res.GeneratedHashtags {
		candidates = append(candidates, h)
	}
	res.Queries = normalize.Queries(candidates, normalize.Options{HashtagOnly: !req.PlainQueries})

	p.logger.WithFields(logrus.Fields{
		"run_id":   res.ID,
		"keywords": len(res.UsedKeywords),
		"hashtags": len(res.GeneratedHashtags),
		"queries":  len(res.Queries),
	}).Info("Pipeline inputs ready")

	switch {
	case p.aggregator == nil:
		res.warn(p.logger, "Trending validation unavailable: APIFY_API_TOKEN not set, skipping trending hashtags")
	case len(res.Queries) == 0:
		res.warn(p.logger, "No candidate queries to validate")
	default:
		agg := p.aggregator.Run(ctx, res.Queries)
		res.TrendingHashtags = agg.TopN
		res.Ranking = agg.Ranking
		res.TotalUnique = agg.TotalUnique
		res.TotalDuration = agg.TotalElapsed.Seconds()
		res.AverageTimePerQuery = agg.AveragePerQuery.Seconds()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(res.Ranking) == 0 {
		if p.aggregator != nil && len(res.Queries) > 0 {
			res.warn(p.logger, "No trending hashtags found")
		}
	} else if req.SelectTop && p.generator != nil {
		all := make([]string, len(res.Ranking))
		for i, r := range res.Ranking {
			all[i] = r.Hashtag
		}
		res.TrendingHashtags = p.generator.SelectTop(ctx, all, res.UsedKeywords, text)
	}

	res.fillEmpty()
	p.record(ctx, res)
	return res, nil
}

func (p *Pipeline) keywords(ctx context.Context, req Request, text string, res *Result) []string {
	if len(req.Keywords) > 0 {
		return normalize.Texts(toAny(req.Keywords))
	}
	if p.generator == nil {
		res.warn(p.logger, "No keyword source configured")
		return nil
	}

	kws, err := p.generator.Keywords(ctx, text)
	if err != nil {
		res.warn(p.logger, fmt.Sprintf("Keyword extraction failed: %v", err))
		return nil
	}
	return normalize.Texts(toAny(kws))
}

func (p *Pipeline) hashtags(ctx context.Context, keywords []string, text string, res *Result) []string {
	if p.generator == nil {
		return nil
	}
	tags, err := p.generator.Hashtags(ctx, keywords, text)
	if err != nil {
		res.warn(p.logger, fmt.Sprintf("Hashtag generation failed: %v", err))
		return nil
	}
	return normalize.Texts(toAny(tags))
}

func (p *Pipeline) record(ctx context.Context, res *Result) {
	if p.history == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to encode result for history")
		return
	}
	kind, input := res.Input()
	_, err = p.history.Save(ctx, history.Record{
		ID:          res.ID,
		Kind:        kind,
		Input:       input,
		Keywords:    res.UsedKeywords,
		Hashtags:    res.TrendingHashtags,
		TotalUnique: res.TotalUnique,
		Duration:    res.TotalDuration,
		Payload:     payload,
		CreatedAt:   res.Timestamp,
	})
	if err != nil {
		p.logger.WithError(err).Warn("Failed to save run history")
	}
}

func (r *Result) warn(logger *logrus.Logger, msg string) {
	logger.WithField("run_id", r.ID).Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

// fillEmpty replaces nil slices so JSON output carries [] rather than null.
func (r *Result) fillEmpty() {
	for _, s := range []*[]string{&r.UsedKeywords, &r.GeneratedHashtags, &r.Queries, &r.TrendingHashtags} {
		if *s == nil {
			*s = []string{}
		}
	}
	if r.Ranking == nil {
		r.Ranking = []aggregate.Ranked{}
	}
}

// WriteResultFile writes v as indented JSON to path, creating parent directories.
func WriteResultFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
