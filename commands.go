package main

import (
	"context"
	"fmt"
	"strings"

	toolcli "github.com/seo-tools/trendtags/internal/cli"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const (
	seoToolName      = "seo_hashtags"
	trendingToolName = "trending_hashtags"
	historyToolName  = "hashtag_history"
	collectToolName  = "collect_search_results"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("trendtags version %s\n", Version)
			fmt.Printf("Commit: %s\n", Commit)
			fmt.Printf("Built: %s\n", BuildDate)
			return nil
		},
	}
}

// jsonFlag selects raw JSON output on the direct commands.
func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Print the raw JSON result",
	}
}

// newRunner bootstraps the runtime and returns a runner in the requested format.
func newRunner(cmd *cli.Command, logger *logrus.Logger, format toolcli.OutputFormat) (*toolcli.Runner, error) {
	if err := bootstrap(cmd, logger, false); err != nil {
		return nil, err
	}
	return toolcli.NewRunner(logger, registry.GetCache(), format), nil
}

func formatFor(cmd *cli.Command) toolcli.OutputFormat {
	if cmd.Bool("json") {
		return toolcli.OutputJSON
	}
	return toolcli.OutputText
}

// runTool runs one tool with already-built parameters.
func runTool(ctx context.Context, cmd *cli.Command, logger *logrus.Logger, name string, params map[string]any) error {
	runner, err := newRunner(cmd, logger, formatFor(cmd))
	if err != nil {
		return err
	}
	return runner.Execute(ctx, name, params)
}

func cliCommand(logger *logrus.Logger) *cli.Command {
	outputFlag := &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   "text",
		Usage:   "Output format (text or json)",
	}
	runner := func(cmd *cli.Command) (*toolcli.Runner, error) {
		format, err := toolcli.ParseOutputFormat(cmd.String("output"))
		if err != nil {
			return nil, err
		}
		return newRunner(cmd, logger, format)
	}

	return &cli.Command{
		Name:  "cli",
		Usage: "Call any registered tool directly",
		Flags: []cli.Flag{outputFlag},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available tools",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					r, err := runner(cmd)
					if err != nil {
						return err
					}
					return r.ListTools()
				},
			},
			{
				Name:      "help",
				Usage:     "Show a tool's parameters",
				ArgsUsage: "<tool>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("usage: trendtags cli help <tool>")
					}
					r, err := runner(cmd)
					if err != nil {
						return err
					}
					return r.HelpTool(cmd.Args().First())
				},
			},
			{
				Name:      "run",
				Usage:     "Run a tool with --key=value flags or a JSON object",
				ArgsUsage: "<tool> [--key=value ...] ['{\"key\": \"value\"}']",
				// Tool parameters are parsed by the runner, not by this command.
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() < 1 {
						return fmt.Errorf("usage: trendtags cli run <tool> [args...]")
					}
					r, err := runner(cmd)
					if err != nil {
						return err
					}
					return r.RunTool(ctx, cmd.Args().First(), cmd.Args().Tail())
				},
			},
		},
	}
}

func generateCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate SEO hashtags for a page or topic and validate them against trending data",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page to scrape"},
			&cli.StringFlag{Name: "topic", Usage: "Topic to generate hashtags for"},
			&cli.StringSliceFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "Keywords to use instead of extraction (repeat or comma-separate)"},
			&cli.BoolFlag{Name: "include-keywords", Usage: "Also validate the keywords (default: on for --url)"},
			&cli.BoolFlag{Name: "plain-queries", Usage: "Also search candidates that do not start with #"},
			&cli.BoolFlag{Name: "select-top", Value: true, Usage: "Ask the LLM to pick the final top hashtags"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the full JSON result to this file"},
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			params, err := generateParams(cmd)
			if err != nil {
				return err
			}
			return runTool(ctx, cmd, logger, seoToolName, params)
		},
	}
}

// generateParams maps generate flags onto seo_hashtags arguments.
func generateParams(cmd *cli.Command) (map[string]any, error) {
	url, topic := cmd.String("url"), cmd.String("topic")
	if (url == "") == (topic == "") {
		return nil, fmt.Errorf("exactly one of --url or --topic is required")
	}

	params := map[string]any{"select_top": cmd.Bool("select-top")}
	if url != "" {
		params["url"] = url
	} else {
		params["topic"] = topic
	}
	if keywords := splitList(cmd.StringSlice("keywords")); len(keywords) > 0 {
		params["keywords"] = keywords
	}
	if cmd.IsSet("include-keywords") {
		params["include_keywords"] = cmd.Bool("include-keywords")
	}
	if cmd.Bool("plain-queries") {
		params["plain_queries"] = true
	}
	if out := cmd.String("output"); out != "" {
		params["output"] = out
	}
	return params, nil
}

func trendingCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "trending",
		Usage:     "Rank hashtags by how often they trend across the configured providers",
		ArgsUsage: "<item> [item...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hashtag-only", Usage: "Only validate items that start with #"},
			&cli.StringFlag{Name: "mode", Usage: "Aggregation mode (sequential or parallel)"},
			&cli.IntFlag{Name: "top-n", Usage: "Number of top hashtags to return"},
			&cli.BoolFlag{Name: "case-fold", Usage: "Merge hashtags that differ only by case"},
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			params, err := trendingParams(cmd)
			if err != nil {
				return err
			}
			return runTool(ctx, cmd, logger, trendingToolName, params)
		},
	}
}

func trendingParams(cmd *cli.Command) (map[string]any, error) {
	items := splitList(cmd.Args().Slice())
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one hashtag or phrase is required")
	}

	params := map[string]any{
		"items":        items,
		"hashtag_only": cmd.Bool("hashtag-only"),
	}
	if mode := cmd.String("mode"); mode != "" {
		params["mode"] = mode
	}
	if cmd.IsSet("top-n") {
		params["top_n"] = int(cmd.Int("top-n"))
	}
	if cmd.IsSet("case-fold") {
		params["case_fold"] = cmd.Bool("case-fold")
	}
	return params, nil
}

func historyCommand(logger *logrus.Logger) *cli.Command {
	limitFlag := &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum records to return"}
	action := func(name string, needsArg bool) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			params := map[string]any{"action": name}
			arg := strings.TrimSpace(cmd.Args().First())
			if needsArg && arg == "" {
				return fmt.Errorf("usage: trendtags history %s %s", name, cmd.ArgsUsage)
			}
			switch name {
			case "get", "delete":
				params["id"] = arg
			case "search":
				params["query"] = arg
			}
			if cmd.IsSet("limit") {
				params["limit"] = int(cmd.Int("limit"))
			}
			return runTool(ctx, cmd, logger, historyToolName, params)
		}
	}

	return &cli.Command{
		Name:   "history",
		Usage:  "Browse previous generate runs",
		Flags:  []cli.Flag{limitFlag, jsonFlag()},
		Action: action("list", false),
		Commands: []*cli.Command{
			{Name: "list", Usage: "List recent runs", Action: action("list", false)},
			{Name: "get", Usage: "Show one run", ArgsUsage: "<id>", Action: action("get", true)},
			{Name: "search", Usage: "Fuzzy search runs by URL, topic, keyword or hashtag", ArgsUsage: "<query>", Action: action("search", true)},
			{Name: "delete", Usage: "Delete one run", ArgsUsage: "<id>", Action: action("delete", true)},
		},
	}
}

func collectCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "collect",
		Usage:     "Fetch raw search results for queries through one provider, using the result cache",
		ArgsUsage: "<query> [query...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Provider name (default: first configured)"},
			&cli.IntFlag{Name: "min-length", Usage: "Drop queries shorter than this after cleaning"},
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !registry.ShouldRegisterTool(collectToolName) {
				return fmt.Errorf("%s is not enabled (set ENABLE_ADDITIONAL_TOOLS=%s)", collectToolName, collectToolName)
			}
			items := splitList(cmd.Args().Slice())
			if len(items) == 0 {
				return fmt.Errorf("at least one query is required")
			}
			params := map[string]any{"items": items}
			if p := cmd.String("provider"); p != "" {
				params["provider"] = p
			}
			if cmd.IsSet("min-length") {
				params["min_length"] = int(cmd.Int("min-length"))
			}
			return runTool(ctx, cmd, logger, collectToolName, params)
		},
	}
}

// splitList flattens repeated and comma-separated values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
