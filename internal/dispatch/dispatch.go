// Package dispatch fans a list of keys out over a bounded worker pool.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers is the worker pool size.
	DefaultWorkers = 6

	// DefaultCallTimeout bounds each call.
	DefaultCallTimeout = 120 * time.Second
)

// Options configures FetchAll.
type Options struct {
	Workers     int
	CallTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	return o
}

// Func computes the value for one key.
type Func[T any] func(ctx context.Context, key string) (T, error)

// FetchAll calls fn once per distinct key on at most Workers goroutines and returns a map holding
// every key. Keys whose call failed, panicked or exceeded CallTimeout map to the zero value of T
// (nil for slices, maps and pointers). A failure never cancels sibling calls.
// Completion order is not guaranteed; only the returned map is shared between workers.
func FetchAll[T any](ctx context.Context, logger *logrus.Logger, keys []string, opts Options, fn Func[T]) map[string]T {
	opts = opts.withDefaults()
	results := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return results
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNameDispatch,
		attribute.Int(telemetry.AttrDispatchWorkers, opts.Workers),
		attribute.Int(telemetry.AttrDispatchItems, len(keys)),
	)

	var (
		mu     sync.Mutex
		failed int
		g      errgroup.Group
	)
	g.SetLimit(opts.Workers)

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		g.Go(func() error {
			value, err := callWithTimeout(ctx, opts.CallTimeout, key, fn)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				logger.WithFields(logrus.Fields{"key": key}).WithError(err).Warn("Parallel fetch failed")
				var zero T
				results[key] = zero
				return nil
			}
			results[key] = value
			return nil
		})
	}

	// workers never return errors
	_ = g.Wait()

	span.SetAttributes(attribute.Int(telemetry.AttrDispatchFailed, failed))
	telemetry.EndSpan(span, nil)
	return results
}

type outcome[T any] struct {
	value T
	err   error
}

// callWithTimeout stops waiting once timeout elapses even if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, key string, fn Func[T]) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome[T]{value: zero, err: fmt.Errorf("worker for %q panicked: %v", key, r)}
			}
		}()
		value, err := fn(callCtx, key)
		done <- outcome[T]{value: value, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-callCtx.Done():
		var zero T
		return zero, fmt.Errorf("call for %q: %w", key, callCtx.Err())
	}
}
