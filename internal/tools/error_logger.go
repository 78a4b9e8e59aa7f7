package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seo-tools/trendtags/internal/config"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogRetentionDays applies when TRENDTAGS_ERROR_LOG_RETENTION_DAYS is unset.
	DefaultLogRetentionDays = 30

	errorLogFileName = "tool-errors.log"
)

// ToolErrorLogEntry is one line of the tool error log.
type ToolErrorLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error"`
	Category  string          `json:"category,omitempty"`
	Transport string          `json:"transport,omitempty"`
}

// ToolErrorLogger appends failed tool calls as JSON lines. A zero value is a disabled logger.
type ToolErrorLogger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

var (
	globalErrorLogger *ToolErrorLogger
	errorLoggerOnce   sync.Once
)

// InitGlobalErrorLogger opens the shared error log when LOG_TOOL_ERRORS=true.
func InitGlobalErrorLogger(logger *logrus.Logger) error {
	var initErr error
	errorLoggerOnce.Do(func() {
		if os.Getenv("LOG_TOOL_ERRORS") != "true" {
			globalErrorLogger = &ToolErrorLogger{logger: logger}
			return
		}

		days := DefaultLogRetentionDays
		if raw := os.Getenv("TRENDTAGS_ERROR_LOG_RETENTION_DAYS"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				initErr = fmt.Errorf("invalid TRENDTAGS_ERROR_LOG_RETENTION_DAYS %q", raw)
				return
			}
			days = n
		}

		l, err := OpenErrorLog(filepath.Join(config.StateDir(), "logs"), time.Duration(days)*24*time.Hour, logger)
		if err != nil {
			initErr = err
			return
		}
		globalErrorLogger = l

		go func() {
			if err := l.Prune(); err != nil {
				logger.WithError(err).Warn("Failed to prune tool error log")
			}
		}()
		logger.WithField("path", l.path).Info("Tool error logging enabled")
	})
	return initErr
}

// GetGlobalErrorLogger returns the shared logger, disabled when not initialised.
func GetGlobalErrorLogger() *ToolErrorLogger {
	if globalErrorLogger == nil {
		return &ToolErrorLogger{}
	}
	return globalErrorLogger
}

// OpenErrorLog opens (creating if needed) dir/tool-errors.log for appending.
func OpenErrorLog(dir string, retention time.Duration, logger *logrus.Logger) (*ToolErrorLogger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &ToolErrorLogger{
		path:      filepath.Join(dir, errorLogFileName),
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
	if err := l.openLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// LogToolError records a failed call. Arguments are sanitised before they are written.
func (l *ToolErrorLogger) LogToolError(toolName string, args map[string]any, err error, transport string) {
	if err == nil || !l.IsEnabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	data, marshalErr := json.Marshal(ToolErrorLogEntry{
		Timestamp: l.now().UTC(),
		ToolName:  toolName,
		Arguments: json.RawMessage(telemetry.SanitiseArguments(args)),
		Error:     err.Error(),
		Category:  telemetry.CategoriseToolError(err),
		Transport: transport,
	})
	if marshalErr != nil {
		l.warn(marshalErr, "Failed to encode tool error entry")
		return
	}
	if _, writeErr := l.file.Write(append(data, '\n')); writeErr != nil {
		l.warn(writeErr, "Failed to write tool error entry")
		return
	}
	if syncErr := l.file.Sync(); syncErr != nil {
		l.warn(syncErr, "Failed to sync tool error log")
	}
}

// Prune drops entries older than the retention period. Unparseable lines are kept.
func (l *ToolErrorLogger) Prune() error {
	if !l.IsEnabled() || l.retention <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close log for pruning: %w", err)
		}
		l.file = nil
	}

	kept, err := l.keptLines(l.now().Add(-l.retention))
	if err != nil {
		_ = l.openLocked()
		return err
	}

	body := ""
	if len(kept) > 0 {
		body = strings.Join(kept, "\n") + "\n"
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0o600); err != nil {
		_ = l.openLocked()
		return fmt.Errorf("failed to write pruned log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		_ = l.openLocked()
		return fmt.Errorf("failed to replace pruned log: %w", err)
	}
	return l.openLocked()
}

func (l *ToolErrorLogger) keptLines(cutoff time.Time) ([]string, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log for pruning: %w", err)
	}
	defer func() { _ = f.Close() }()

	var kept []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ToolErrorLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Timestamp.IsZero() || entry.Timestamp.After(cutoff) {
			kept = append(kept, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log for pruning: %w", err)
	}
	return kept, nil
}

// Close closes the log file.
func (l *ToolErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// IsEnabled reports whether entries are written.
func (l *ToolErrorLogger) IsEnabled() bool {
	return l != nil && l.path != ""
}

// GetLogFilePath returns the log path, empty when disabled.
func (l *ToolErrorLogger) GetLogFilePath() string {
	return l.path
}

// openLocked opens the log for appending. Caller must hold l.mu.
func (l *ToolErrorLogger) openLocked() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open tool error log: %w", err)
	}
	l.file = f
	return nil
}

func (l *ToolErrorLogger) warn(err error, msg string) {
	if l.logger != nil {
		l.logger.WithError(err).Warn(msg)
	}
}
