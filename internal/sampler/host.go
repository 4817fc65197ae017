package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const DefaultDiskPath = "/"

// Host reads CPU, memory and disk utilization of the local machine.
type Host struct {
	diskPath string
	now      func() time.Time

	cpuPercent  func(context.Context, time.Duration, bool) ([]float64, error)
	memPercent  func(context.Context) (float64, error)
	diskPercent func(context.Context, string) (float64, error)
}

func NewHost(diskPath string) *Host {
	if diskPath == "" {
		diskPath = DefaultDiskPath
	}

	return &Host{
		diskPath:    diskPath,
		now:         time.Now,
		cpuPercent:  cpu.PercentWithContext,
		memPercent:  virtualMemoryPercent,
		diskPercent: diskUsagePercent,
	}
}

// Sample always reports Connected. A counter that cannot be read is left
// out of the record and reported through the returned error.
func (h *Host) Sample(ctx context.Context) (telemetry.Record, error) {
	errFactory := errors.New()
	metrics := make(map[string]float64, 3)
	var errs []error

	// A zero interval compares against the previous call.
	if pct, err := h.cpuPercent(ctx, 0, false); err != nil {
		errs = append(errs, err)
	} else if len(pct) > 0 {
		metrics[telemetry.MetricCPU] = pct[0]
	}

	if pct, err := h.memPercent(ctx); err != nil {
		errs = append(errs, err)
	} else {
		metrics[telemetry.MetricMemory] = pct
	}

	if pct, err := h.diskPercent(ctx, h.diskPath); err != nil {
		errs = append(errs, err)
	} else {
		metrics[telemetry.MetricDisk] = pct
	}

	rec := telemetry.NewRecord(h.now(), telemetry.Connected, metrics)
	if len(errs) > 0 {
		return rec, errFactory.Wrap(errors.ErrSampleFailed, errors.Join(errs...))
	}

	return rec, nil
}

func virtualMemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}

	return vm.UsedPercent, nil
}

func diskUsagePercent(ctx context.Context, path string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}

	return usage.UsedPercent, nil
}
