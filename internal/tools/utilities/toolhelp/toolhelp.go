// Package toolhelp serves the long-form usage guides of the hashtag tools.
package toolhelp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

// ToolHelpTool answers get_tool_help.
type ToolHelpTool struct{}

func init() {
	registry.Register(&ToolHelpTool{})
}

// ToolHelpResponse is the get_tool_help payload.
type ToolHelpResponse struct {
	ToolName     string               `json:"tool_name"`
	Description  string               `json:"description"`
	InputSchema  *mcp.ToolInputSchema `json:"input_schema,omitempty"`
	ExtendedInfo *tools.ExtendedHelp  `json:"extended_info,omitempty"`
}

// Definition lists the tools that currently provide extended help.
func (t *ToolHelpTool) Definition() mcp.Tool {
	names := registry.GetToolNamesWithExtendedHelp()

	description := "Get parameter details, examples and troubleshooting for the hashtag tools. Use it after an unexpected error or empty result."
	if len(names) == 0 {
		description = "No tools currently provide extended help."
	}

	return mcp.NewTool(
		"get_tool_help",
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Tool to get help for"),
			mcp.Enum(names...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ToolHelpTool) Execute(_ context.Context, logger *logrus.Logger, _ *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	name, err := parseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	tool, ok := registry.GetTool(name)
	if !ok {
		return nil, notFound(name)
	}
	provider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return nil, notFound(name)
	}

	def := tool.Definition()
	resp := ToolHelpResponse{
		ToolName:     def.Name,
		Description:  def.Description,
		ExtendedInfo: provider.ProvideExtendedInfo(),
	}
	if def.InputSchema.Type != "" {
		resp.InputSchema = &def.InputSchema
	}

	logger.WithField("tool", name).Debug("Serving extended help")
	return tools.NewToolResultJSON(resp)
}

func parseRequest(args map[string]any) (string, error) {
	name, ok := args["tool_name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("missing or invalid required parameter: tool_name")
	}
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_"), nil
}

func notFound(name string) error {
	msg := fmt.Sprintf("tool %q is unknown, disabled or has no extended help; tools with help: %s",
		name, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	if suggestions := registry.SuggestToolNames(name); len(suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("%s", msg)
}
