package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
)

// maxSuggestions bounds SuggestToolNames.
const maxSuggestions = 3

var (
	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger

	// cache is the shared cache instance; the hashtag tools keep their runtime in it
	cache *sync.Map

	mu sync.RWMutex
)

// additionalTools must be listed in ENABLE_ADDITIONAL_TOOLS to be served.
var additionalTools = []string{
	"collect_search_results",
}

// Init initialises the registry and shared resources
func Init(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	cache = &sync.Map{}
	parseDisabledTools()
}

// parseDisabledTools parses the DISABLED_TOOLS environment variable. Caller must hold mu.
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for tool := range strings.SplitSeq(os.Getenv("DISABLED_TOOLS"), ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}
}

// normaliseName lowercases and maps underscores to hyphens so env lists accept either spelling.
func normaliseName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
}

// requiresEnablement checks if a tool requires enablement via ENABLE_ADDITIONAL_TOOLS.
func requiresEnablement(toolName string) bool {
	n := normaliseName(toolName)
	for _, tool := range additionalTools {
		if normaliseName(tool) == n {
			return true
		}
	}
	return false
}

// isToolEnabled checks if a tool is enabled via the ENABLE_ADDITIONAL_TOOLS environment variable
func isToolEnabled(toolName string) bool {
	enabledTools := os.Getenv("ENABLE_ADDITIONAL_TOOLS")
	if enabledTools == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(enabledTools), "all") {
		return true
	}

	n := normaliseName(toolName)
	for tool := range strings.SplitSeq(enabledTools, ",") {
		if normaliseName(tool) == n {
			return true
		}
	}
	return false
}

// available reports whether name may be served right now. Caller must hold mu.
func available(name string) bool {
	if disabledTools[name] {
		return false
	}
	return !requiresEnablement(name) || isToolEnabled(name)
}

// ShouldRegisterTool checks if a tool should be served based on:
// 1. DISABLED_TOOLS - explicit disable, highest priority
// 2. Tool's enablement requirement
// 3. ENABLE_ADDITIONAL_TOOLS (explicit enable)
func ShouldRegisterTool(toolName string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return available(toolName)
}

// Register adds a tool implementation to the registry. Tools register from init(), before Init
// has read the environment, so availability is checked again on lookup.
func Register(tool tools.Tool) {
	// Definition may itself read the registry.
	toolName := tool.Definition().Name

	mu.Lock()
	defer mu.Unlock()

	if disabledTools[toolName] {
		if logger != nil {
			logger.WithField("tool", toolName).Debug("Tool not registered (disabled)")
		}
		return
	}

	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool successfully registered")
	}
}

// GetTool retrieves a tool by name, returns false if disabled or not enabled
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if !available(name) {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetTools returns all registered tools, excluding disabled ones
func GetTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	filtered := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		filtered[name] = tool
	}
	return filtered
}

// GetEnabledTools returns all tools that are enabled for MCP server registration
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	filtered := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if available(name) {
			filtered[name] = tool
		}
	}
	return filtered
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GetCache returns the shared cache instance
func GetCache() *sync.Map {
	mu.RLock()
	defer mu.RUnlock()
	return cache
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name := range toolRegistry {
		if available(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name, tool := range toolRegistry {
		if !available(name) {
			continue
		}
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SuggestToolNames returns up to three enabled tool names that fuzzy-match name, best first.
func SuggestToolNames(name string) []string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
	if name == "" {
		return nil
	}

	names := GetEnabledToolNames()
	matches := fuzzy.Find(name, names)
	out := make([]string, 0, min(maxSuggestions, len(matches)))
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
