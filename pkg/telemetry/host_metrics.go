package telemetry

import (
	"context"
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var log = logging.Logger("telemetry")

// StartHostMetrics observes the memory and CPU of this process, which hosts the
// simulated chain, and the filesystem backing the chain's data directory. The
// observations stop when ctx is done.
func StartHostMetrics(ctx context.Context, tel *Telemetry, dataDir string) error {
	if dataDir == "" {
		return fmt.Errorf("dataDir is required to start host metrics")
	}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("inspecting devchain process: %w", err)
	}

	meter := tel.Meter()

	rss, err := meter.Int64ObservableGauge(
		"devchain_process_resident_bytes",
		metric.WithDescription("Resident memory of the devchain process"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("create resident memory gauge: %w", err)
	}

	cpuPercent, err := meter.Float64ObservableGauge(
		"devchain_process_cpu_utilization",
		metric.WithDescription("CPU used by the devchain process as a fraction of one core since it started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create cpu utilization gauge: %w", err)
	}

	dataDirUsed, err := meter.Int64ObservableGauge(
		"devchain_datadir_used_bytes",
		metric.WithDescription("Bytes used on the filesystem backing the chain data directory"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("create data-dir used gauge: %w", err)
	}

	dataDirFree, err := meter.Int64ObservableGauge(
		"devchain_datadir_free_bytes",
		metric.WithDescription("Free bytes on the filesystem backing the chain data directory"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("create data-dir free gauge: %w", err)
	}

	dataDirTotal, err := meter.Int64ObservableGauge(
		"devchain_datadir_total_bytes",
		metric.WithDescription("Total bytes on the filesystem backing the chain data directory"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("create data-dir total gauge: %w", err)
	}

	pathAttr := metric.WithAttributes(attribute.String("path", dataDir))

	reg, err := meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
				o.ObserveInt64(rss, int64(mem.RSS))
			}
			if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
				o.ObserveFloat64(cpuPercent, pct/100.0)
			}
			// the directory goes away with an ephemeral chain
			if usage, err := disk.UsageWithContext(ctx, dataDir); err == nil {
				o.ObserveInt64(dataDirUsed, int64(usage.Used), pathAttr)
				o.ObserveInt64(dataDirFree, int64(usage.Free), pathAttr)
				o.ObserveInt64(dataDirTotal, int64(usage.Total), pathAttr)
			}
			return nil
		},
		rss,
		cpuPercent,
		dataDirUsed,
		dataDirFree,
		dataDirTotal,
	)
	if err != nil {
		return fmt.Errorf("register host metrics callback: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := reg.Unregister(); err != nil {
			log.Debugw("failed to unregister host metrics callback", "error", err)
		}
	}()

	return nil
}
