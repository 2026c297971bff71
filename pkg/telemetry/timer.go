package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Timer records durations in milliseconds to a histogram.
type Timer struct {
	histogram metric.Float64Histogram
	attrs     []attribute.KeyValue
}

type TimerConfig struct {
	Name        string
	Description string
	Attributes  map[string]string
	Boundaries  []float64
}

func NewTimer(meter metric.Meter, cfg TimerConfig) (*Timer, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(cfg.Description),
		metric.WithUnit("ms"),
	}
	if len(cfg.Boundaries) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(cfg.Boundaries...))
	}

	histogram, err := meter.Float64Histogram(cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create timer %s: %w", cfg.Name, err)
	}

	return &Timer{
		histogram: histogram,
		attrs:     toAttributes(cfg.Attributes),
	}, nil
}

func (t *Timer) Record(ctx context.Context, duration time.Duration, attrs ...attribute.KeyValue) {
	t.histogram.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(join(t.attrs, attrs)...))
}

type TimedContext struct {
	ctx       context.Context
	timer     *Timer
	startTime time.Time
	attrs     []attribute.KeyValue
}

// Start begins timing an operation; End records it.
func (t *Timer) Start(ctx context.Context, attrs ...attribute.KeyValue) *TimedContext {
	return &TimedContext{
		ctx:       ctx,
		timer:     t,
		startTime: time.Now(),
		attrs:     attrs,
	}
}

func (tc *TimedContext) End(attrs ...attribute.KeyValue) {
	tc.timer.Record(tc.ctx, time.Since(tc.startTime), join(tc.attrs, attrs)...)
}
