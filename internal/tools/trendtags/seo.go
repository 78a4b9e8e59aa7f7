package trendtags

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/pipeline"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

const seoToolName = "seo_hashtags"

// SEOTool generates SEO hashtags for a page or topic and validates them against trending data.
type SEOTool struct{}

// SEORequest is the parsed input of seo_hashtags.
type SEORequest struct {
	pipeline.Request
	Output string
}

func init() {
	registry.Register(&SEOTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *SEOTool) Definition() mcp.Tool {
	return mcp.NewTool(
		seoToolName,
		mcp.WithDescription(`Generate SEO hashtags for a web page or a topic.

The page is scraped (with browser-like fallbacks), keywords and hashtags are generated by the configured LLM (or taken from the keywords you pass), and the candidates are validated against trending data. Without APIFY_API_TOKEN the trending list is empty and a warning is returned.

Provide exactly one of url or topic.`),
		mcp.WithString("url",
			mcp.Description("Page to analyse"),
		),
		mcp.WithString("topic",
			mcp.Description("Topic to generate hashtags for, instead of a page"),
		),
		mcp.WithArray("keywords",
			mcp.Description("Keywords to use instead of extracting them (required when no LLM is configured)"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("include_keywords",
			mcp.Description("Pass keywords to validation as well as hashtags (default true for url, false for topic)"),
		),
		mcp.WithBoolean("plain_queries",
			mcp.Description("Also search candidates that do not start with # (default false)"),
		),
		mcp.WithBoolean("select_top",
			mcp.Description("Let the LLM pick the final hashtags from the full trending ranking"),
			mcp.DefaultBool(true),
		),
		mcp.WithString("output",
			mcp.Description("Also write the full JSON result to this file"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Execute runs the pipeline and records the run in history.
func (t *SEOTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	req, err := t.parseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	rt, err := runtimeFrom(cache, logger)
	if err != nil {
		return nil, err
	}
	p, err := rt.Pipeline(req.Keywords)
	if err != nil {
		return nil, err
	}

	res, err := p.Generate(ctx, req.Request)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
		return nil, err
	}

	if req.Output != "" {
		if err := pipeline.WriteResultFile(req.Output, res); err != nil {
			return nil, err
		}
		logger.WithField("path", req.Output).Info("Wrote result file")
	}

	return tools.NewToolResultJSON(res)
}

func (t *SEOTool) parseRequest(args map[string]any) (*SEORequest, error) {
	req := &SEORequest{}
	var err error

	if req.URL, err = stringArg(args, "url"); err != nil {
		return nil, err
	}
	if req.Topic, err = stringArg(args, "topic"); err != nil {
		return nil, err
	}
	if (req.URL == "") == (req.Topic == "") {
		return nil, pipeline.ErrInvalidRequest
	}
	if req.Keywords, err = stringsArg(args, "keywords"); err != nil {
		return nil, err
	}
	if req.IncludeKeywords, err = boolArg(args, "include_keywords", req.URL != ""); err != nil {
		return nil, err
	}
	if req.PlainQueries, err = boolArg(args, "plain_queries", false); err != nil {
		return nil, err
	}
	if req.SelectTop, err = boolArg(args, "select_top", true); err != nil {
		return nil, err
	}
	if req.Output, err = stringArg(args, "output"); err != nil {
		return nil, err
	}
	return req, nil
}

// ProvideExtendedInfo provides detailed usage information
func (t *SEOTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description:    "Hashtags for a blog post",
				Arguments:      map[string]any{"url": "https://example.com/blog/ai-tools"},
				ExpectedResult: "Keywords, generated hashtags and the trending hashtags ranked across providers",
			},
			{
				Description: "Hashtags for a topic without an LLM",
				Arguments: map[string]any{
					"topic":    "enterprise seo",
					"keywords": []any{"SEO audit", "technical SEO", "site speed"},
				},
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "no content could be scraped",
				Solution: "The page blocked both scrapers; pass a topic and keywords instead",
			},
			{
				Problem:  "keywords are required when no LLM is configured",
				Solution: "Set OPENAI_API_KEY or pass keywords",
			},
		},
		ParameterDetails: map[string]string{
			"include_keywords": "When true, keywords join the candidates; plain ones are only searched with plain_queries",
			"plain_queries":    "Each plain candidate costs one provider run per source",
			"select_top":       "Ignored without an LLM; the ranking order is kept",
		},
		WhenToUse:    "Producing the final hashtag set for a page or topic",
		WhenNotToUse: "Re-ranking an existing candidate list; use trending_hashtags",
	}
}
