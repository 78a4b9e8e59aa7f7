package config

import (
	"os"
	"path/filepath"
)

// StateDirEnv overrides the directory holding logs, cache, history and providers.yaml.
const StateDirEnv = "TRENDTAGS_HOME"

// StateDir returns the trendtags state directory, ~/.trendtags by default.
func StateDir() string {
	if custom := os.Getenv(StateDirEnv); custom != "" {
		return custom
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return filepath.Join(os.TempDir(), ".trendtags")
	}
	return filepath.Join(homeDir, ".trendtags")
}

// LogFilePath is where the server writes its log.
func LogFilePath() string {
	return filepath.Join(StateDir(), "logs", "trendtags.log")
}

// DefaultCachePath is the trending-result cache file.
func DefaultCachePath() string {
	return filepath.Join(StateDir(), "cache", "trending.json")
}

// DefaultHistoryPath is the run history database.
func DefaultHistoryPath() string {
	return filepath.Join(StateDir(), "history.db")
}

// DefaultProvidersPath is the optional provider definition file.
func DefaultProvidersPath() string {
	return filepath.Join(StateDir(), "providers.yaml")
}
