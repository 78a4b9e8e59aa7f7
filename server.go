package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// newMCPServer builds the MCP server with every enabled tool attached.
func newMCPServer(transport string, logger *logrus.Logger) *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer("trendtags", Version)

	enabled := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabled)).Debug("Registering tools")
	for name, tool := range enabled {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}
		srv.AddTool(tool.Definition(), toolHandler(name, transport, logger))
	}
	return srv
}

// toolHandler wraps a registered tool with tracing, metrics and error logging.
func toolHandler(name, transport string, logger *logrus.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool, ok := registry.GetTool(name)
		if !ok {
			return nil, fmt.Errorf("tool not found: %s", name)
		}

		args, ok := request.Params.Arguments.(map[string]any)
		if !ok && request.Params.Arguments != nil {
			return nil, fmt.Errorf("invalid arguments type: expected object, got %T", request.Params.Arguments)
		}

		traced := telemetry.IsEnabled() && !telemetry.IsToolTracingDisabled(name)
		ctx, span := telemetry.StartToolSpan(ctx, name, args)
		start := time.Now()

		result, err := tool.Execute(ctx, registry.GetLogger(), registry.GetCache(), args)

		if traced {
			telemetry.EndToolSpan(span, err)
		}
		telemetry.RecordToolCall(ctx, name, transport, err == nil, float64(time.Since(start).Milliseconds()))
		if err != nil {
			telemetry.RecordToolError(ctx, name, telemetry.CategoriseToolError(err))
			if transport != "stdio" {
				logger.WithError(err).WithField("tool", name).Error("Tool execution failed")
			}
			if errorLogger := tools.GetGlobalErrorLogger(); errorLogger.IsEnabled() {
				errorLogger.LogToolError(name, args, err, transport)
			}
			return nil, fmt.Errorf("tool execution failed: %w", err)
		}
		return result, nil
	}
}

// serve runs the MCP server over the selected transport until ctx ends.
func serve(ctx context.Context, cmd *cli.Command, srv *mcpserver.MCPServer, logger *logrus.Logger) error {
	transport := cmd.String("transport")
	port := cmd.String("port")

	logger.WithField("transport", transport).Debug("Starting server")
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(srv)
	case "sse":
		sse := mcpserver.NewSSEServer(srv, mcpserver.WithBaseURL(cmd.String("base-url")+"/sse"))
		return runHTTP(ctx, ":"+port, sse, logger)
	case "http":
		return startStreamableHTTPServer(ctx, cmd, srv, logger)
	default:
		return fmt.Errorf("unsupported transport: %s (expected stdio, sse or http)", transport)
	}
}

// startStreamableHTTPServer serves the Streamable HTTP transport with session expiry and optional
// bearer-token authentication.
func startStreamableHTTPServer(ctx context.Context, cmd *cli.Command, srv *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := cmd.String("port")
	endpointPath := cmd.String("endpoint-path")
	sessionTimeout := cmd.Duration("session-timeout")
	authToken := cmd.String("auth-token")

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	}

	heartbeat := 30 * time.Second
	if sessionTimeout > 0 {
		opts = append(opts, mcpserver.WithSessionIdManager(newTimeoutSessionManager(sessionTimeout, logger)))
		heartbeat = sessionTimeout / 4
	}
	opts = append(opts, mcpserver.WithHeartbeatInterval(heartbeat))

	httpServer := mcpserver.NewStreamableHTTPServer(srv, opts...)

	var handler http.Handler = httpServer
	if authToken != "" {
		handler = requireBearer(authToken, handler, logger)
		logger.Info("Bearer token authentication enabled")
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPath, checkHeaders(handler, logger))

	logger.Infof("Streamable HTTP server on port %s, endpoint %s, heartbeat %v", port, endpointPath, heartbeat)
	return runHTTP(ctx, ":"+port, mux, logger)
}

// runHTTP serves handler until ctx is cancelled, then shuts down gracefully.
func runHTTP(ctx context.Context, addr string, handler http.Handler, logger *logrus.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

// requireBearer rejects requests without the expected bearer token.
func requireBearer(expected string, next http.Handler, logger *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			logger.WithField("remote", r.RemoteAddr).Warn("Rejected request with missing or invalid token")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkHeaders rejects foreign origins and unknown protocol versions.
func checkHeaders(next http.Handler, logger *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.WithField("origin", origin).Warn("Rejected request from foreign origin")
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}
		if version := r.Header.Get("MCP-Protocol-Version"); version != "" && !isValidProtocolVersion(version) {
			logger.WithField("version", version).Warn("Rejected unsupported MCP protocol version")
			http.Error(w, "unsupported MCP protocol version", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isValidProtocolVersion(version string) bool {
	return slices.Contains([]string{"2025-06-18", "2025-03-26", "2024-11-05"}, version)
}

// isValidOrigin allows loopback origins only.
func isValidOrigin(origin string) bool {
	for _, allowed := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") || strings.HasPrefix(origin, allowed+"/") {
			return true
		}
	}
	return false
}

// timeoutSessionManager issues UUID session IDs and expires sessions idle longer than timeout.
type timeoutSessionManager struct {
	timeout time.Duration
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newTimeoutSessionManager(timeout time.Duration, logger *logrus.Logger) *timeoutSessionManager {
	return &timeoutSessionManager{
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

func (m *timeoutSessionManager) Generate() string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen[id] = m.now()
	return id
}

// Validate reports isTerminated for expired sessions and refreshes live ones.
func (m *timeoutSessionManager) Validate(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, errors.New("empty session ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen, ok := m.lastSeen[sessionID]
	if !ok {
		return false, fmt.Errorf("unknown session ID: %s", sessionID)
	}
	if m.now().Sub(seen) > m.timeout {
		delete(m.lastSeen, sessionID)
		m.logger.WithField("session", sessionID).Debug("Session expired")
		return true, nil
	}
	m.lastSeen[sessionID] = m.now()
	return false, nil
}

// Terminate forgets the session. Clients may always terminate their own session.
func (m *timeoutSessionManager) Terminate(sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSeen, sessionID)
	m.logger.WithField("session", sessionID).Debug("Session terminated")
	return false, nil
}

// logrusAdapter satisfies the mcp-go logger interface.
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Debugf(format string, args ...any) { l.logger.Debugf(format, args...) }
func (l *logrusAdapter) Infof(format string, args ...any)  { l.logger.Infof(format, args...) }
func (l *logrusAdapter) Warnf(format string, args ...any)  { l.logger.Warnf(format, args...) }
func (l *logrusAdapter) Errorf(format string, args ...any) { l.logger.Errorf(format, args...) }
