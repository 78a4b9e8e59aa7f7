package telemetry

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const defaultMetricExportInterval = 60 * time.Second

var (
	metricsMutex        sync.RWMutex
	globalMeterProvider *sdkmetric.MeterProvider
	globalMeter         metric.Meter
	metricsEnabled      bool

	enabledMetricGroups map[string]bool

	// tool
	toolCallsCounter      metric.Int64Counter
	toolDurationHistogram metric.Float64Histogram
	toolErrorsCounter     metric.Int64Counter

	// provider
	providerCallsCounter      metric.Int64Counter
	providerAttemptsHistogram metric.Int64Histogram
	providerDurationHistogram metric.Float64Histogram
	providerErrorsCounter     metric.Int64Counter

	// aggregate
	aggregateRunsCounter       metric.Int64Counter
	aggregateUniqueHistogram   metric.Int64Histogram
	aggregateDurationHistogram metric.Float64Histogram

	// cache
	cacheOpsCounter metric.Int64Counter
)

// InitMetrics initialises the OpenTelemetry meter provider. Call it after InitTracer.
func InitMetrics(logger *logrus.Logger) (func() error, error) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	enabledMetricGroups = parseEnabledMetricGroups()
	if len(enabledMetricGroups) == 0 {
		enabledMetricGroups = map[string]bool{
			"tool":     true,
			"provider": true,
		}
		logger.Debug("OTEL Metrics: Using default groups (tool, provider)")
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Debug("OTEL Metrics: Not configured, using noop meter")
		metricsEnabled = false
		globalMeter = otel.GetMeterProvider().Meter(instrumentationName)
		return func() error { return nil }, nil
	}

	logger.WithField("endpoint", endpoint).Info("OTEL Metrics: Initialising meter")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		logger.WithError(err).Warn("OTEL Metrics: Failed to create exporter, falling back to noop meter")
		metricsEnabled = false
		globalMeter = otel.GetMeterProvider().Meter(instrumentationName)
		return func() error { return nil }, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(getMetricExportInterval(logger)),
		)),
		sdkmetric.WithResource(newResource(ctx, logger)),
	)

	otel.SetMeterProvider(meterProvider)
	globalMeterProvider = meterProvider
	globalMeter = meterProvider.Meter(instrumentationName)
	metricsEnabled = true

	if err := initMetricInstruments(globalMeter, enabledMetricGroups); err != nil {
		logger.WithError(err).Error("OTEL Metrics: Failed to initialise instruments")
		metricsEnabled = false
		return func() error { return nil }, err
	}

	logger.Info("OTEL Metrics: Meter initialised successfully")

	return func() error {
		metricsMutex.Lock()
		defer metricsMutex.Unlock()

		if globalMeterProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := globalMeterProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("OTEL Metrics: Failed to shutdown meter provider")
			return err
		}
		logger.Debug("OTEL Metrics: Meter provider shutdown successfully")
		return nil
	}, nil
}

// initMetricInstruments creates the instruments of every enabled group.
// The caller holds metricsMutex.
func initMetricInstruments(meter metric.Meter, groups map[string]bool) error {
	var err error

	if groups["tool"] {
		if toolCallsCounter, err = meter.Int64Counter("trendtags.tool.calls",
			metric.WithDescription("Total tool invocations"),
			metric.WithUnit("{call}"),
		); err != nil {
			return err
		}
		if toolDurationHistogram, err = meter.Float64Histogram("trendtags.tool.duration",
			metric.WithDescription("Tool execution duration"),
			metric.WithUnit("ms"),
			metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 30000, 60000, 120000),
		); err != nil {
			return err
		}
		if toolErrorsCounter, err = meter.Int64Counter("trendtags.tool.errors",
			metric.WithDescription("Tool execution errors by type"),
			metric.WithUnit("{error}"),
		); err != nil {
			return err
		}
	}

	if groups["provider"] {
		if providerCallsCounter, err = meter.Int64Counter("provider.calls",
			metric.WithDescription("Provider invocations after retries"),
			metric.WithUnit("{call}"),
		); err != nil {
			return err
		}
		if providerAttemptsHistogram, err = meter.Int64Histogram("provider.attempts",
			metric.WithDescription("Attempts used per provider invocation"),
			metric.WithUnit("{attempt}"),
			metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 10),
		); err != nil {
			return err
		}
		if providerDurationHistogram, err = meter.Float64Histogram("provider.duration",
			metric.WithDescription("Provider invocation duration including backoff"),
			metric.WithUnit("ms"),
			metric.WithExplicitBucketBoundaries(250, 1000, 2500, 5000, 10000, 30000, 60000, 120000),
		); err != nil {
			return err
		}
		if providerErrorsCounter, err = meter.Int64Counter("provider.errors",
			metric.WithDescription("Provider failures by type"),
			metric.WithUnit("{error}"),
		); err != nil {
			return err
		}
	}

	if groups["aggregate"] {
		if aggregateRunsCounter, err = meter.Int64Counter("aggregate.runs",
			metric.WithDescription("Aggregation runs"),
			metric.WithUnit("{run}"),
		); err != nil {
			return err
		}
		if aggregateUniqueHistogram, err = meter.Int64Histogram("aggregate.unique_hashtags",
			metric.WithDescription("Distinct hashtags seen per run"),
			metric.WithUnit("{hashtag}"),
			metric.WithExplicitBucketBoundaries(0, 5, 10, 25, 50, 100, 250, 500),
		); err != nil {
			return err
		}
		if aggregateDurationHistogram, err = meter.Float64Histogram("aggregate.duration",
			metric.WithDescription("Aggregation run duration"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
		); err != nil {
			return err
		}
	}

	if groups["cache"] {
		if cacheOpsCounter, err = meter.Int64Counter("cache.operations",
			metric.WithDescription("Cache operations"),
			metric.WithUnit("{operation}"),
		); err != nil {
			return err
		}
	}

	return nil
}

// IsMetricsEnabled returns true if metrics collection is enabled
func IsMetricsEnabled() bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled
}

func isMetricGroupEnabled(group string) bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled && enabledMetricGroups[group]
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordToolCall records a tool invocation metric
func RecordToolCall(ctx context.Context, toolName string, transport string, success bool, durationMs float64) {
	if !isMetricGroupEnabled("tool") {
		return
	}

	if toolCallsCounter != nil {
		toolCallsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("transport", transport),
			attribute.String("result", resultLabel(success)),
		))
	}
	if toolDurationHistogram != nil {
		toolDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("transport", transport),
		))
	}
}

// RecordToolError records a categorised tool error
func RecordToolError(ctx context.Context, toolName string, errorType string) {
	if !isMetricGroupEnabled("tool") || toolErrorsCounter == nil {
		return
	}
	toolErrorsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("error.type", errorType),
	))
}

// CategoriseToolError maps errors to metric-friendly categories
func CategoriseToolError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "dial tcp"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"):
		return "network"
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "invalid"),
		strings.Contains(errStr, "validation"),
		strings.Contains(errStr, "required parameter"),
		strings.Contains(errStr, "missing required"):
		return "validation"
	case strings.Contains(errStr, "API error"),
		strings.Contains(errStr, "status"):
		return "external_api"
	default:
		return "internal"
	}
}

// RecordProviderCall records one retried provider invocation.
func RecordProviderCall(ctx context.Context, provider string, success bool, attempts int, durationMs float64) {
	if !isMetricGroupEnabled("provider") {
		return
	}

	attrs := metric.WithAttributes(attribute.String("provider.name", provider))
	if providerCallsCounter != nil {
		providerCallsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider.name", provider),
			attribute.String("result", resultLabel(success)),
		))
	}
	if providerAttemptsHistogram != nil {
		providerAttemptsHistogram.Record(ctx, int64(attempts), attrs)
	}
	if providerDurationHistogram != nil {
		providerDurationHistogram.Record(ctx, durationMs, attrs)
	}
}

// RecordProviderError records a categorised provider failure.
func RecordProviderError(ctx context.Context, provider string, errorType string) {
	if !isMetricGroupEnabled("provider") || providerErrorsCounter == nil {
		return
	}
	providerErrorsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("error.type", errorType),
	))
}

// RecordAggregateRun records the outcome of one aggregation run.
func RecordAggregateRun(ctx context.Context, mode string, uniqueHashtags int, durationSeconds float64) {
	if !isMetricGroupEnabled("aggregate") {
		return
	}

	attrs := metric.WithAttributes(attribute.String("mode", mode))
	if aggregateRunsCounter != nil {
		aggregateRunsCounter.Add(ctx, 1, attrs)
	}
	if aggregateUniqueHistogram != nil {
		aggregateUniqueHistogram.Record(ctx, int64(uniqueHashtags), attrs)
	}
	if aggregateDurationHistogram != nil {
		aggregateDurationHistogram.Record(ctx, durationSeconds, attrs)
	}
}

// RecordCacheOperation records a cache operation metric
func RecordCacheOperation(ctx context.Context, cacheName string, operation string, hit bool) {
	if !isMetricGroupEnabled("cache") || cacheOpsCounter == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	cacheOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", cacheName),
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

func parseEnabledMetricGroups() map[string]bool {
	enabled := make(map[string]bool)
	for group := range strings.SplitSeq(os.Getenv("TRENDTAGS_METRICS_GROUPS"), ",") {
		group = strings.TrimSpace(group)
		if group != "" {
			enabled[group] = true
		}
	}
	return enabled
}

func getMetricExportInterval(logger *logrus.Logger) time.Duration {
	intervalStr := os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")
	if intervalStr == "" {
		return defaultMetricExportInterval
	}

	duration, err := time.ParseDuration(intervalStr)
	if err != nil {
		// bare numbers are seconds
		duration, err = time.ParseDuration(intervalStr + "s")
		if err != nil {
			logger.WithField("interval", intervalStr).Warn("OTEL Metrics: Invalid export interval, using default")
			return defaultMetricExportInterval
		}
	}
	return duration
}
