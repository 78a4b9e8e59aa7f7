package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type contextKey string

const (
	runIDKey contextKey = "trendtags.run.id"

	instrumentationName = "trendtags"

	defaultMaxAttributeSize = 4096
	minAttributeSize        = 1024
	maxAttributeSize        = 65536
)

var (
	globalMutex          sync.RWMutex
	globalTracer         trace.Tracer
	globalTracerProvider *sdktrace.TracerProvider
	disabledTools        map[string]bool
	tracingEnabled       bool
)

// otelErrorHandler routes SDK errors to our logger so nothing reaches stderr in stdio mode.
type otelErrorHandler struct {
	logger *logrus.Logger
}

func (h *otelErrorHandler) Handle(err error) {
	if err == nil {
		return
	}
	h.logger.WithError(err).Debug("OTEL: SDK error occurred")
}

// InitTracer initialises the OpenTelemetry tracer from the standard OTEL_* environment variables.
// A noop tracer is installed when no endpoint is configured or the exporter cannot be created.
func InitTracer(logger *logrus.Logger) (func() error, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	disabledTools = parseDisabledTools()

	if strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL: Explicitly disabled via OTEL_SDK_DISABLED")
		globalTracer = noop.NewTracerProvider().Tracer(instrumentationName)
		tracingEnabled = false
		return func() error { return nil }, nil
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Debug("OTEL: Not configured (OTEL_EXPORTER_OTLP_ENDPOINT not set), using noop tracer")
		globalTracer = noop.NewTracerProvider().Tracer(instrumentationName)
		tracingEnabled = false
		return func() error { return nil }, nil
	}

	logger.WithField("endpoint", endpoint).Info("OTEL: Initialising tracer")
	otel.SetErrorHandler(&otelErrorHandler{logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exporter *otlptrace.Exporter
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create exporter, falling back to noop tracer")
		globalTracer = noop.NewTracerProvider().Tracer(instrumentationName)
		tracingEnabled = false
		return func() error { return nil }, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(ctx, logger)),
		sdktrace.WithSampler(createSampler(logger)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracer = tp.Tracer(instrumentationName)
	globalTracerProvider = tp
	tracingEnabled = true

	logger.Info("OTEL: Tracer initialised successfully")

	return func() error {
		globalMutex.Lock()
		defer globalMutex.Unlock()

		if globalTracerProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := globalTracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("OTEL: Failed to shutdown tracer provider")
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		logger.Debug("OTEL: Tracer provider shutdown successfully")
		return nil
	}, nil
}

func newResource(ctx context.Context, logger *logrus.Logger) *resource.Resource {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getServiceName()),
			semconv.ServiceVersionKey.String(getServiceVersion()),
			attribute.String("deployment.environment", getDeploymentEnvironment()),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create resource, using default")
		return resource.Default()
	}
	return res
}

// GetTracer returns the global tracer, or a noop tracer before initialisation.
func GetTracer() trace.Tracer {
	globalMutex.RLock()
	defer globalMutex.RUnlock()

	if globalTracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return globalTracer
}

// IsEnabled returns true if tracing is enabled
func IsEnabled() bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return tracingEnabled
}

// IsToolTracingDisabled reports whether TRENDTAGS_TRACING_DISABLED_TOOLS lists toolName.
func IsToolTracingDisabled(toolName string) bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return disabledTools[toolName]
}

// NewRunID generates an identifier correlating every span and log line of one aggregation run.
func NewRunID() string {
	return uuid.New().String()
}

// ContextWithRunID stores a run identifier on ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run identifier stored on ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		return runID
	}
	return ""
}

// StartSpan starts an internal span. The caller must end it with EndSpan.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !IsEnabled() {
		return ctx, trace.SpanFromContext(ctx)
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}

	return GetTracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// StartToolSpan creates a span for an MCP tool execution with its sanitised arguments.
func StartToolSpan(ctx context.Context, toolName string, args map[string]any) (context.Context, trace.Span) {
	if !IsEnabled() || IsToolTracingDisabled(toolName) {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := GetTracer().Start(ctx, SpanNameToolExecute, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(AttrToolName, toolName))

	sanitisedArgs := SanitiseArguments(args)
	maxAttrSize := getMaxAttributeSize()
	if len(sanitisedArgs) <= maxAttrSize {
		span.SetAttributes(attribute.String(AttrToolArguments, sanitisedArgs))
	} else {
		span.SetAttributes(
			attribute.String(AttrToolArguments, TruncateString(sanitisedArgs, maxAttrSize)),
			attribute.Bool(AttrToolArgumentsTruncated, true),
		)
	}

	return ctx, span
}

// EndToolSpan ends a tool execution span with success or error
func EndToolSpan(span trace.Span, err error) {
	if span == nil {
		return
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool(AttrToolSuccess, false),
			attribute.String(AttrToolError, err.Error()),
		)
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Bool(AttrToolSuccess, true))
	}

	span.End()
}

func parseDisabledTools() map[string]bool {
	disabled := make(map[string]bool)
	for tool := range strings.SplitSeq(os.Getenv("TRENDTAGS_TRACING_DISABLED_TOOLS"), ",") {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			disabled[tool] = true
		}
	}
	return disabled
}

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return instrumentationName
}

func getServiceVersion() string {
	if version := os.Getenv("TRENDTAGS_VERSION"); version != "" {
		return version
	}
	return "dev"
}

func getDeploymentEnvironment() string {
	for _, envVar := range []string{"ENVIRONMENT", "ENV", "DEPLOYMENT_ENV"} {
		if env := os.Getenv(envVar); env != "" {
			return env
		}
	}

	if attrs := os.Getenv("OTEL_RESOURCE_ATTRIBUTES"); attrs != "" {
		for pair := range strings.SplitSeq(attrs, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) == 2 && kv[0] == "deployment.environment" {
				return kv[1]
			}
		}
	}

	return "development"
}

func createSampler(logger *logrus.Logger) sdktrace.Sampler {
	samplerArg := os.Getenv("OTEL_TRACES_SAMPLER_ARG")

	switch samplerType := os.Getenv("OTEL_TRACES_SAMPLER"); samplerType {
	case "", "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(parseRatio(samplerArg, 1.0))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseRatio(samplerArg, 1.0)))
	default:
		logger.WithField("sampler", samplerType).Warn("OTEL: Unknown sampler type, using always_on")
		return sdktrace.AlwaysSample()
	}
}

func parseRatio(s string, defaultVal float64) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return defaultVal
	}
	return min(max(f, 0.0), 1.0)
}

func getMaxAttributeSize() int {
	var size int
	if _, err := fmt.Sscanf(os.Getenv("TRENDTAGS_TRACING_MAX_ATTRIBUTE_SIZE"), "%d", &size); err != nil {
		return defaultMaxAttributeSize
	}
	return min(max(size, minAttributeSize), maxAttributeSize)
}
