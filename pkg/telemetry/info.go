package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Info is a gauge that always reports 1, carrying its information in labels.
type Info struct {
	gauge metric.Float64Gauge
	attrs []attribute.KeyValue
}

type InfoConfig struct {
	Name        string
	Description string
	Labels      map[string]string
}

func NewInfo(meter metric.Meter, cfg InfoConfig) (*Info, error) {
	gauge, err := meter.Float64Gauge(cfg.Name,
		metric.WithDescription(cfg.Description),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create info %s: %w", cfg.Name, err)
	}

	return &Info{
		gauge: gauge,
		attrs: toAttributes(cfg.Labels),
	}, nil
}

func (i *Info) Record(ctx context.Context, attrs ...attribute.KeyValue) {
	i.gauge.Record(ctx, 1, metric.WithAttributes(join(i.attrs, attrs)...))
}
