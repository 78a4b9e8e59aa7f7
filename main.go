package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/seo-tools/trendtags/internal/config"
	"github.com/seo-tools/trendtags/internal/registry"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/seo-tools/trendtags/internal/tools"
	"github.com/seo-tools/trendtags/internal/tools/trendtags"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	// Registers every tool.
	_ "github.com/seo-tools/trendtags/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Resources released by performCleanup. Atomic so signal handling cannot race cleanup.
var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool

	shutdownMu    sync.Mutex
	shutdownHooks []func() error
)

// DefaultMemoryLimit is the soft Go runtime memory limit (1GB).
const DefaultMemoryLimit = 1 << 30

// setMemoryLimit applies TRENDTAGS_MEMORY_LIMIT (bytes) or DefaultMemoryLimit.
func setMemoryLimit() {
	limit := int64(DefaultMemoryLimit)
	if raw := os.Getenv("TRENDTAGS_MEMORY_LIMIT"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	debug.SetMemoryLimit(limit)
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Nothing may be logged until the transport is known.
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env must be loaded before the registry reads DISABLED_TOOLS.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	registry.Init(logger)
	defer performCleanup(logger)

	if err := newApp(logger).Run(ctx, os.Args); err != nil {
		// stdio clients read stdout as protocol, and many treat stderr output as a failure.
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		performCleanup(logger)
		os.Exit(1)
	}
}

// newApp builds the command tree. The root action serves MCP.
func newApp(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:    "trendtags",
		Usage:   "SEO hashtag generation and trending-hashtag validation, served over MCP or run directly",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
				Sources: cli.EnvVars("TRENDTAGS_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:    "port",
				Value:   "18080",
				Usage:   "Port to use for HTTP transports (SSE and Streamable HTTP)",
				Sources: cli.EnvVars("TRENDTAGS_PORT"),
			},
			&cli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for HTTP transports",
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required by the Streamable HTTP transport (optional)",
				Sources: cli.EnvVars("TRENDTAGS_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "endpoint-path",
				Value: "/http",
				Usage: "Endpoint path for Streamable HTTP transport",
			},
			&cli.DurationFlag{
				Name:  "session-timeout",
				Value: 30 * time.Minute,
				Usage: "Idle session timeout for Streamable HTTP transport",
			},
			&cli.StringFlag{
				Name:    "providers",
				Usage:   "Provider definition file (default: ~/.trendtags/providers.yaml)",
				Sources: cli.EnvVars("TRENDTAGS_PROVIDERS"),
			},
		},
		Commands: []*cli.Command{
			versionCommand(),
			cliCommand(logger),
			generateCommand(logger),
			trendingCommand(logger),
			historyCommand(logger),
			collectCommand(logger),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			transport := cmd.String("transport")
			isStdioMode.Store(transport == "stdio")

			if err := bootstrap(cmd, logger, transport == "stdio"); err != nil {
				return err
			}
			if transport != "stdio" {
				logger.Infof("Starting trendtags version %s (commit: %s, built: %s)", Version, Commit, BuildDate)
			}

			return serve(ctx, cmd, newMCPServer(transport, logger), logger)
		},
	}
}

// bootstrap configures logging, telemetry and the shared hashtag runtime.
func bootstrap(cmd *cli.Command, logger *logrus.Logger, stdio bool) error {
	configureLogging(logger, stdio)

	if err := tools.InitGlobalErrorLogger(logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise tool error logger")
	}

	if shutdown, err := telemetry.InitTracer(logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise tracing")
	} else {
		addShutdownHook(shutdown)
	}
	if shutdown, err := telemetry.InitMetrics(logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise metrics")
	} else {
		addShutdownHook(shutdown)
	}

	cfg, err := config.Load(config.LoadOptions{ProvidersFile: cmd.String("providers")})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	rt, err := trendtags.NewRuntime(cfg, logger, newProviderLogger(logger))
	if err != nil {
		return err
	}
	trendtags.Install(registry.GetCache(), rt)

	logger.WithFields(logrus.Fields{
		"providers": len(cfg.EnabledProviders()),
		"llm":       cfg.HasLLM(),
		"mode":      cfg.Mode,
	}).Debug("Runtime configured")
	return nil
}

func addShutdownHook(fn func() error) {
	if fn == nil {
		return
	}
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	shutdownHooks = append(shutdownHooks, fn)
}

// performCleanup releases the runtime, telemetry exporters and log files. Safe to call twice.
func performCleanup(logger *logrus.Logger) {
	trendtags.Shutdown(registry.GetCache(), logger)

	shutdownMu.Lock()
	hooks := shutdownHooks
	shutdownHooks = nil
	shutdownMu.Unlock()
	for _, fn := range hooks {
		if err := fn(); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}

	if err := tools.GetGlobalErrorLogger().Close(); err != nil {
		logger.WithError(err).Warn("Failed to close tool error logger")
	}

	if file := debugLogFile.Swap(nil); file != nil {
		logger.SetOutput(io.Discard)
		logrus.SetOutput(io.Discard)
		_ = file.Close()
	}
}
