// Package telemetry wraps OpenTelemetry metrics. Instruments are created from a
// Telemetry instance, which exports over OTLP/HTTP when an endpoint is configured and
// is a no-op otherwise.
//
//	tel, err := telemetry.New(ctx, telemetry.Config{
//	    ServiceName: "devchain",
//	    Endpoint:    "localhost:4318",
//	    Insecure:    true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	runs, _ := tel.NewCounter(telemetry.CounterConfig{Name: "runs_total"})
//	runs.Inc(ctx, telemetry.StringAttr("result", "ok"))
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Telemetry struct {
	provider *Provider
	meter    metric.Meter
}

func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}

	return &Telemetry{
		provider: provider,
		meter:    provider.Meter(),
	}, nil
}

// NewWithMeter creates a new Telemetry instance with a custom meter.
// This is useful for testing with in-memory exporters or manual readers.
func NewWithMeter(meter metric.Meter) *Telemetry {
	return &Telemetry{
		meter: meter,
	}
}

func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

func (t *Telemetry) NewCounter(cfg CounterConfig) (*Counter, error) {
	return NewCounter(t.meter, cfg)
}

func (t *Telemetry) NewTimer(cfg TimerConfig) (*Timer, error) {
	return NewTimer(t.meter, cfg)
}

func (t *Telemetry) NewInfo(cfg InfoConfig) (*Info, error) {
	return NewInfo(t.meter, cfg)
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

func BoolAttr(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

// DurationBoundaries are histogram buckets in milliseconds, from 10ms to 10 minutes.
var DurationBoundaries = []float64{
	10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000, 600000,
}
