package cli

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoTool returns its arguments, or a fixed payload when one is set.
type echoTool struct {
	name    string
	payload string
	got     map[string]any
}

func (e *echoTool) Definition() mcp.Tool {
	return mcp.NewTool(e.name,
		mcp.WithDescription("Echo tool\nSecond line"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
		mcp.WithNumber("topN", mcp.Description("Result count")),
		mcp.WithBoolean("case_fold", mcp.Description("Fold case")),
		mcp.WithString("mode", mcp.Enum("sequential", "parallel")),
	)
}

func (e *echoTool) Execute(_ context.Context, _ *logrus.Logger, _ *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	e.got = args
	if e.payload != "" {
		return mcp.NewToolResultText(e.payload), nil
	}
	return mcp.NewToolResultText("plain output"), nil
}

func newTestRunner(t *testing.T, output OutputFormat) (*Runner, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var buf bytes.Buffer
	r := NewRunner(logger, &sync.Map{}, output)
	r.out = &buf
	return r, &buf
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputText, f)

	f, err = ParseOutputFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestListAndHelp(t *testing.T) {
	registry.Register(&echoTool{name: "cli_echo_list"})

	r, buf := newTestRunner(t, OutputText)
	require.NoError(t, r.ListTools())
	assert.Contains(t, buf.String(), "cli_echo_list")
	assert.Contains(t, buf.String(), "Echo tool")
	assert.NotContains(t, buf.String(), "Second line")

	buf.Reset()
	require.NoError(t, r.HelpTool("cli-echo-list"))
	out := buf.String()
	assert.Contains(t, out, "Tool: cli_echo_list")
	assert.Contains(t, out, "--query")
	assert.Contains(t, out, "--top-n")
	assert.Contains(t, out, "[sequential|parallel]")
}

func TestRunTool_ParsesFlagsAndJSON(t *testing.T) {
	tool := &echoTool{name: "cli_echo_run"}
	registry.Register(tool)

	r, buf := newTestRunner(t, OutputText)
	err := r.RunTool(context.Background(), "cli-echo-run",
		[]string{"--query=ai", "--top-n", "3", "--case-fold", `{"query":"ignored","mode":"parallel"}`})
	require.NoError(t, err)

	assert.Equal(t, "ai", tool.got["query"])
	assert.EqualValues(t, 3, tool.got["topN"])
	assert.Equal(t, true, tool.got["case_fold"])
	assert.Equal(t, "parallel", tool.got["mode"])
	assert.Equal(t, "plain output\n", buf.String())
}

func TestRunTool_ArgumentErrors(t *testing.T) {
	registry.Register(&echoTool{name: "cli_echo_args"})
	r, _ := newTestRunner(t, OutputText)

	err := r.RunTool(context.Background(), "cli_echo_args", []string{"stray"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected argument")

	err = r.RunTool(context.Background(), "cli_echo_args", []string{"--query"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a value")
}

func TestUnknownToolSuggestsNames(t *testing.T) {
	registry.Register(&echoTool{name: "cli_echo_suggest"})
	r, _ := newTestRunner(t, OutputText)

	err := r.HelpTool("cli_echo_sugest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "cli_echo_suggest")

	err = r.RunTool(context.Background(), "zzzzzzzz", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trendtags cli list")
}

func TestRenderHashtagPayload(t *testing.T) {
	payload := `{
  "url": "https://example.com/post",
  "used_keywords": ["seo", "audit"],
  "generated_hashtags": ["#SEO", "#Audit"],
  "apify_trending_hashtags": ["#SEO"],
  "apify_trending_hashtags_all": [{"hashtag": "#SEO", "count": 4}, {"hashtag": "#Audit", "count": 1}],
  "apify_total_unique": 2,
  "warnings": ["keyword extraction failed"]
}`
	registry.Register(&echoTool{name: "cli_echo_seo", payload: payload})

	r, buf := newTestRunner(t, OutputText)
	require.NoError(t, r.Execute(context.Background(), "cli_echo_seo", map[string]any{}))

	out := buf.String()
	assert.Contains(t, out, "URL: https://example.com/post")
	assert.Contains(t, out, "Keywords: seo, audit")
	assert.Contains(t, out, "Generated: #SEO #Audit")
	assert.Contains(t, out, "Trending: #SEO")
	assert.Contains(t, out, " 1. #SEO")
	assert.Contains(t, out, " 2. #Audit")
	assert.Contains(t, out, "Unique: 2")
	assert.Contains(t, out, "warning: keyword extraction failed")
	assert.NotContains(t, out, "{")
}

func TestRenderTrendingPayloadWithNoTop(t *testing.T) {
	registry.Register(&echoTool{name: "cli_echo_trending", payload: `{"top": [], "ranking": [], "total_unique": 0}`})

	r, buf := newTestRunner(t, OutputText)
	require.NoError(t, r.Execute(context.Background(), "cli_echo_trending", nil))
	assert.Contains(t, buf.String(), "Trending: none")
	assert.Contains(t, buf.String(), "Unique: 0")
}

func TestRenderNonHashtagJSONFallsBack(t *testing.T) {
	payload := `{"provider": "web", "queries": ["ai"]}`
	registry.Register(&echoTool{name: "cli_echo_other", payload: payload})

	r, buf := newTestRunner(t, OutputText)
	require.NoError(t, r.Execute(context.Background(), "cli_echo_other", nil))
	assert.Equal(t, payload+"\n", buf.String())
}

func TestJSONOutputWritesRawResult(t *testing.T) {
	registry.Register(&echoTool{name: "cli_echo_json", payload: `{"top": ["#AI"]}`})

	r, buf := newTestRunner(t, OutputJSON)
	require.NoError(t, r.Execute(context.Background(), "cli_echo_json", nil))
	assert.Contains(t, buf.String(), `"content"`)
	assert.Contains(t, buf.String(), `\"top\"`)
}

func TestToFlagName(t *testing.T) {
	assert.Equal(t, "top-n", toFlagName("topN"))
	assert.Equal(t, "case-fold", toFlagName("case_fold"))
	assert.Equal(t, "items", toFlagName("items"))
}

func TestParseArgs_Coercion(t *testing.T) {
	def := mcp.NewTool("coerce",
		mcp.WithArray("items", mcp.WithStringItems()),
		mcp.WithNumber("limit"),
		mcp.WithBoolean("hashtag_only"),
	)

	params, err := parseArgs([]string{"--items", "#AI, #ML,,", "--limit=2.5", "--hashtag-only=no"}, def)
	require.NoError(t, err)
	assert.Equal(t, []any{"#AI", "#ML"}, params["items"])
	assert.Equal(t, 2.5, params["limit"])
	assert.Equal(t, false, params["hashtag_only"])

	params, err = parseArgs([]string{`--items=["#a,b"]`, `{"limit": 7, "extra": "x"}`, "--limit", "3"}, def)
	require.NoError(t, err)
	assert.Equal(t, []any{"#a,b"}, params["items"])
	assert.EqualValues(t, 3, params["limit"])
	assert.Equal(t, "x", params["extra"])

	_, err = parseArgs([]string{"--limit", "many"}, def)
	assert.ErrorContains(t, err, "expects a number")

	_, err = parseArgs([]string{"--hashtag-only=maybe"}, def)
	assert.ErrorContains(t, err, "expects true or false")
}
