package trendtags

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/history"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

const historyToolName = "hashtag_history"

// History actions.
const (
	ActionList   = "list"
	ActionGet    = "get"
	ActionSearch = "search"
	ActionDelete = "delete"
)

// HistoryTool browses previous seo_hashtags runs.
type HistoryTool struct{}

// HistoryRequest is the parsed input of hashtag_history.
type HistoryRequest struct {
	Action string
	ID     string
	Query  string
	Limit  int
}

func init() {
	registry.Register(&HistoryTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool(
		historyToolName,
		mcp.WithDescription("List, fuzzy-search, fetch or delete previous SEO hashtag runs."),
		mcp.WithString("action",
			mcp.Description("'list' recent runs (default), 'get' one run, 'search' by input and hashtags, 'delete' a run"),
			mcp.Enum(ActionList, ActionGet, ActionSearch, ActionDelete),
		),
		mcp.WithString("id",
			mcp.Description("Run ID for get and delete"),
		),
		mcp.WithString("query",
			mcp.Description("Fuzzy search text for search"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max runs returned (20, Optional)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute performs the requested history action.
func (t *HistoryTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	req, err := t.parseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	rt, err := runtimeFrom(cache, logger)
	if err != nil {
		return nil, err
	}
	if rt.History == nil {
		return nil, ErrNoHistory
	}
	store := rt.History

	switch req.Action {
	case ActionGet:
		rec, err := store.Get(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return tools.NewToolResultJSON(rec)
	case ActionDelete:
		if err := store.Delete(ctx, req.ID); err != nil {
			return nil, err
		}
		return tools.NewToolResultJSON(map[string]any{"deleted": req.ID})
	case ActionSearch:
		recs, err := store.Search(ctx, req.Query, req.Limit)
		if err != nil {
			return nil, err
		}
		return tools.NewToolResultJSON(nonNilRecords(recs))
	default:
		recs, err := store.List(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return tools.NewToolResultJSON(nonNilRecords(recs))
	}
}

func (t *HistoryTool) parseRequest(args map[string]any) (*HistoryRequest, error) {
	req := &HistoryRequest{}
	var err error

	if req.Action, err = stringArg(args, "action"); err != nil {
		return nil, err
	}
	if req.Action == "" {
		req.Action = ActionList
	}
	if req.ID, err = stringArg(args, "id"); err != nil {
		return nil, err
	}
	if req.Query, err = stringArg(args, "query"); err != nil {
		return nil, err
	}
	if req.Limit, err = intArg(args, "limit", history.DefaultListLimit); err != nil {
		return nil, err
	}

	switch req.Action {
	case ActionList:
	case ActionGet, ActionDelete:
		if req.ID == "" {
			return nil, fmt.Errorf("missing required parameter for %s: id", req.Action)
		}
	case ActionSearch:
		if req.Query == "" {
			return nil, fmt.Errorf("missing required parameter for search: query")
		}
	default:
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}
	return req, nil
}

func nonNilRecords(recs []history.Record) []history.Record {
	if recs == nil {
		return []history.Record{}
	}
	return recs
}
