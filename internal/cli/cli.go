// Package cli runs the registered tools directly from the command line, in-process and without
// an MCP server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

// OutputFormat controls how tool results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Runner executes CLI commands against the tool registry.
type Runner struct {
	logger *logrus.Logger
	cache  *sync.Map
	output OutputFormat
	out    io.Writer
}

// NewRunner creates a Runner that writes to stdout using the given logger, cache, and output format.
func NewRunner(logger *logrus.Logger, cache *sync.Map, output OutputFormat) *Runner {
	return &Runner{logger: logger, cache: cache, output: output, out: os.Stdout}
}

// ParseOutputFormat accepts "text" or "json"; empty selects text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("invalid output format %q (expected text or json)", s)
}

// ListTools prints every enabled tool with the first line of its description.
func (r *Runner) ListTools() error {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	enabled := registry.GetEnabledTools()
	entries := make([]entry, 0, len(enabled))
	for _, t := range enabled {
		def := t.Definition()
		entries = append(entries, entry{Name: def.Name, Description: firstLine(def.Description)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if r.output == OutputJSON {
		return writeJSON(r.out, entries)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
	}
	return w.Flush()
}

// HelpTool prints a tool's description and its parameters as command-line flags.
func (r *Runner) HelpTool(name string) error {
	tool, _, err := lookupTool(name)
	if err != nil {
		return err
	}
	def := tool.Definition()

	if r.output == OutputJSON {
		return writeJSON(r.out, def)
	}

	fmt.Fprintf(r.out, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	params := describeParams(def)
	if len(params) == 0 {
		fmt.Fprintln(r.out, "No parameters.")
		return nil
	}

	fmt.Fprintln(r.out, "Parameters:")
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, p := range params {
		note := p.description
		if p.required {
			note += " (required)"
		}
		if len(p.enum) > 0 {
			note += " [" + strings.Join(p.enum, "|") + "]"
		}
		fmt.Fprintf(w, "  --%s\t%s\t%s\n", p.flag, p.kind, note)
	}
	return w.Flush()
}

// RunTool executes a tool from command-line arguments: --key=value, --key value, bare boolean
// --flag, and JSON objects. Flags win over keys repeated in a JSON object.
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	tool, resolved, err := lookupTool(name)
	if err != nil {
		return err
	}

	params, err := parseArgs(args, tool.Definition())
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}
	return r.Execute(ctx, resolved, params)
}

// Execute runs a tool with already-parsed parameters and renders the result.
func (r *Runner) Execute(ctx context.Context, name string, params map[string]any) error {
	tool, ok := registry.GetTool(name)
	if !ok {
		return unknownToolError(name)
	}

	result, err := tool.Execute(ctx, r.logger, r.cache, params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}
	return r.renderResult(result)
}

// lookupTool finds an enabled tool by name, accepting kebab-case for snake_case names.
func lookupTool(name string) (tools.Tool, string, error) {
	for _, candidate := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if tool, ok := registry.GetTool(candidate); ok {
			return tool, candidate, nil
		}
	}
	return nil, name, unknownToolError(name)
}

// unknownToolError names the closest enabled tools.
func unknownToolError(name string) error {
	if suggestions := registry.SuggestToolNames(name); len(suggestions) > 0 {
		return fmt.Errorf("unknown tool: %s (did you mean %s?)", name, strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("unknown tool: %s (run 'trendtags cli list' to see available tools)", name)
}

// renderResult formats a CallToolResult for terminal output.
func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, result)
	}

	// Text mode: extract text content
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			if !r.renderHashtags(c.Text) {
				fmt.Fprintln(r.out, c.Text)
			}
		default:
			// Non-text content: render as JSON
			data, err := json.MarshalIndent(c, "", "  ")
			if err != nil {
				fmt.Fprintf(r.out, "%+v\n", c)
			} else {
				fmt.Fprintln(r.out, string(data))
			}
		}
	}

	if result.IsError {
		return fmt.Errorf("tool returned an error")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	if before, _, found := strings.Cut(s, "\n"); found {
		return before
	}
	return s
}
