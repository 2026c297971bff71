package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric/noop"
)

var (
	globalTelemetry *Telemetry
	globalMu        sync.RWMutex
)

// Initialize sets up the global telemetry instance.
// This should be called once at application startup.
func Initialize(ctx context.Context, cfg Config) error {
	tel, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalTelemetry = tel
	return nil
}

// Global returns the global telemetry instance, or a no-op instance if Initialize
// hasn't been called.
func Global() *Telemetry {
	globalMu.RLock()
	tel := globalTelemetry
	globalMu.RUnlock()
	if tel != nil {
		return tel
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalTelemetry == nil {
		globalTelemetry = NewWithMeter(noop.NewMeterProvider().Meter("noop"))
	}
	return globalTelemetry
}

// Shutdown flushes and shuts down the global telemetry instance.
func Shutdown(ctx context.Context) error {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalTelemetry != nil {
		return globalTelemetry.Shutdown(ctx)
	}
	return nil
}

// SetGlobalForTesting replaces the global instance. Passing nil resets it.
func SetGlobalForTesting(tel *Telemetry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalTelemetry = tel
}
