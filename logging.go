package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seo-tools/trendtags/internal/config"
	"github.com/sirupsen/logrus"
)

// parseLevel maps a level name to logrus, falling back to def when empty or unknown.
func parseLevel(raw string, def logrus.Level) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return def
	}
}

// parseLogLevel reads LOG_LEVEL, defaulting to warn.
func parseLogLevel() logrus.Level {
	return parseLevel(os.Getenv("LOG_LEVEL"), logrus.WarnLevel)
}

// openLogFile opens the shared log file, creating its directory.
func openLogFile() (*os.File, error) {
	path := config.LogFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// configureLogging points logger at the log file. When the file is unusable, stdio mode discards
// output and every other mode falls back to stderr.
func configureLogging(logger *logrus.Logger, stdio bool) {
	level := parseLogLevel()
	if stdio && level < logrus.WarnLevel {
		level = logrus.WarnLevel
	}

	var out io.Writer
	if file, err := openLogFile(); err == nil {
		debugLogFile.Store(file)
		out = file
	} else if stdio {
		out = io.Discard
	} else {
		out = os.Stderr
	}

	logger.SetOutput(out)
	logger.SetLevel(level)
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

// newProviderLogger builds the logger for provider-internal diagnostics. It shares the
// application's sink and reads PROVIDER_LOG_LEVEL, defaulting to error.
func newProviderLogger(logger *logrus.Logger) *logrus.Logger {
	pl := logrus.New()
	pl.SetOutput(logger.Out)
	pl.SetFormatter(logger.Formatter)
	pl.SetLevel(parseLevel(os.Getenv("PROVIDER_LOG_LEVEL"), logrus.ErrorLevel))
	return pl
}
