package telemetry

import (
	"context"
	"fmt"
	"time"
)

const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Metrics are the instruments recorded over a chain's lifecycle.
type Metrics struct {
	extractDuration *Timer
	smokeTestRuns   *Counter
	serverInfo      *Info
}

func NewMetrics(tel *Telemetry) (*Metrics, error) {
	extract, err := tel.NewTimer(TimerConfig{
		Name:        "devchain_archive_extract_duration",
		Description: "Time taken to decompress a chain snapshot",
		Boundaries:  DurationBoundaries,
	})
	if err != nil {
		return nil, err
	}
	runs, err := tel.NewCounter(CounterConfig{
		Name:        "devchain_smoke_test_runs_total",
		Description: "Smoke test runs by result",
	})
	if err != nil {
		return nil, err
	}
	info, err := tel.NewInfo(InfoConfig{
		Name:        "devchain_server_info",
		Description: "Running chain server",
	})
	if err != nil {
		return nil, err
	}
	return &Metrics{
		extractDuration: extract,
		smokeTestRuns:   runs,
		serverInfo:      info,
	}, nil
}

func (m *Metrics) RecordExtract(ctx context.Context, d time.Duration, skipped bool) {
	m.extractDuration.Record(ctx, d, BoolAttr("skipped", skipped))
}

func (m *Metrics) RecordSmokeTest(ctx context.Context, err error) {
	result := ResultPass
	if err != nil {
		result = ResultFail
	}
	m.smokeTestRuns.Inc(ctx, StringAttr("result", result))
}

func (m *Metrics) RecordServer(ctx context.Context, backend string, port int, networkID uint64) {
	m.serverInfo.Record(ctx,
		StringAttr("backend", backend),
		IntAttr("port", port),
		StringAttr("network_id", fmt.Sprint(networkID)),
	)
}
