package trendtags

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/aggregate"
	"github.com/seo-tools/trendtags/internal/hashtags/normalize"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

const trendingToolName = "trending_hashtags"

// TrendingTool ranks the hashtags trending for a list of candidate queries.
type TrendingTool struct{}

// TrendingRequest is the parsed input of trending_hashtags.
type TrendingRequest struct {
	Items       []any
	HashtagOnly bool
	Mode        aggregate.Mode
	TopN        int
	CaseFold    *bool
}

// TrendingResponse is the output of trending_hashtags.
type TrendingResponse struct {
	Queries         []string           `json:"queries"`
	Top             []string           `json:"top"`
	Ranking         []aggregate.Ranked `json:"ranking"`
	TotalUnique     int                `json:"total_unique"`
	TotalDuration   float64            `json:"total_duration_seconds"`
	AveragePerQuery float64            `json:"avg_seconds_per_query"`
	Providers       []string           `json:"providers"`
}

func init() {
	registry.Register(&TrendingTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *TrendingTool) Definition() mcp.Tool {
	return mcp.NewTool(
		trendingToolName,
		mcp.WithDescription(`Find which hashtags are trending for a set of candidate keywords or hashtags.

Each candidate is searched on the configured web and social providers; hashtags found in the results are weighted by source (social sources count double) and ranked. Candidates may be plain strings, records with title/text/query fields, or URLs.

Requires APIFY_API_TOKEN (or another configured provider).`),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description("Candidate keywords or hashtags, e.g. [\"#AI\", \"machine learning\"]"),
		),
		mcp.WithBoolean("hashtag_only",
			mcp.Description("Only search candidates that start with '#'"),
			mcp.DefaultBool(false),
		),
		mcp.WithString("mode",
			mcp.Description("Query scheduling (defaults to TRENDTAGS_MODE)"),
			mcp.Enum(string(aggregate.ModeSequential), string(aggregate.ModeParallel)),
		),
		mcp.WithNumber("top_n",
			mcp.Description("Length of the top list (5, Optional)"),
		),
		mcp.WithBoolean("case_fold",
			mcp.Description("Merge hashtags that differ only in case"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Execute runs the aggregation. Missing provider credentials are reported as an error.
func (t *TrendingTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	req, err := t.parseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	rt, err := runtimeFrom(cache, logger)
	if err != nil {
		return nil, err
	}
	if rt.Aggregator == nil {
		return nil, fmt.Errorf("trending validation unavailable: %w", rt.AggregatorErr)
	}

	agg, err := t.aggregatorFor(rt, req, logger)
	if err != nil {
		return nil, err
	}

	queries := normalize.Queries(req.Items, normalize.Options{HashtagOnly: req.HashtagOnly})
	logger.WithFields(logrus.Fields{
		"items":   len(req.Items),
		"queries": len(queries),
	}).Debug("Normalised trending candidates")

	res := agg.Run(ctx, queries)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := agg.Config()
	names := make([]string, len(cfg.Sources))
	for i, s := range cfg.Sources {
		names[i] = s.Provider.Name()
	}

	return tools.NewToolResultJSON(&TrendingResponse{
		Queries:         queries,
		Top:             res.TopN,
		Ranking:         res.Ranking,
		TotalUnique:     res.TotalUnique,
		TotalDuration:   res.TotalElapsed.Seconds(),
		AveragePerQuery: res.AveragePerQuery.Seconds(),
		Providers:       names,
	})
}

// aggregatorFor returns the shared aggregator, or a copy when the request overrides its settings.
func (t *TrendingTool) aggregatorFor(rt *Runtime, req *TrendingRequest, logger *logrus.Logger) (*aggregate.Aggregator, error) {
	cfg := rt.Aggregator.Config()
	changed := false
	if req.Mode != "" && req.Mode != cfg.Mode {
		cfg.Mode, changed = req.Mode, true
	}
	if req.TopN > 0 && req.TopN != cfg.TopN {
		cfg.TopN, changed = req.TopN, true
	}
	if req.CaseFold != nil && *req.CaseFold != cfg.CaseFold {
		cfg.CaseFold, changed = *req.CaseFold, true
	}
	if !changed {
		return rt.Aggregator, nil
	}
	return aggregate.New(cfg, logger, rt.RetryOptions...)
}

func (t *TrendingTool) parseRequest(args map[string]any) (*TrendingRequest, error) {
	items, err := itemsArg(args, "items")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("missing or invalid required parameter: items")
	}

	req := &TrendingRequest{Items: items}
	if req.HashtagOnly, err = boolArg(args, "hashtag_only", false); err != nil {
		return nil, err
	}

	mode, err := stringArg(args, "mode")
	if err != nil {
		return nil, err
	}
	if mode != "" {
		if req.Mode, err = aggregate.ParseMode(mode); err != nil {
			return nil, err
		}
	}

	if req.TopN, err = intArg(args, "top_n", 0); err != nil {
		return nil, err
	}
	if req.TopN < 0 {
		return nil, fmt.Errorf("invalid top_n parameter: must not be negative")
	}

	if _, ok := args["case_fold"]; ok {
		fold, err := boolArg(args, "case_fold", false)
		if err != nil {
			return nil, err
		}
		req.CaseFold = &fold
	}
	return req, nil
}

// ProvideExtendedInfo provides detailed usage information
func (t *TrendingTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Validate generated hashtags",
				Arguments: map[string]any{
					"items": []any{"#AI", "#MachineLearning", "#DataScience"},
				},
				ExpectedResult: "Top hashtags with their weighted counts and timing statistics",
			},
			{
				Description: "Search keywords in parallel and keep a longer list",
				Arguments: map[string]any{
					"items": []any{"content marketing", "seo audit"},
					"mode":  "parallel",
					"top_n": 10,
				},
			},
		},
		CommonPatterns: []string{
			"Generate candidates with seo_hashtags, then re-rank them here with different providers or top_n",
			"Pass hashtag_only=true to ignore plain keywords in mixed lists",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "trending validation unavailable",
				Solution: "Set APIFY_API_TOKEN, or configure brave, searxng or duckduckgo providers in providers.yaml",
			},
			{
				Problem:  "Empty ranking",
				Solution: "Providers may have failed for every query; check the log file for provider warnings",
			},
		},
		ParameterDetails: map[string]string{
			"items": "Strings, records with title/text/query/q/searchQuery/snippet/name, or URLs carrying a q parameter",
			"mode":  "sequential queries one candidate at a time; parallel uses TRENDTAGS_WORKERS workers",
		},
		WhenToUse:    "You already have candidate hashtags or keywords and need to know which are actually in use",
		WhenNotToUse: "You only have a page URL or topic; use seo_hashtags instead",
	}
}
