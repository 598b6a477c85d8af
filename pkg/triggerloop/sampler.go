// Package triggerloop implements the fixed-cadence Trigger Loop from
// spec.md §4.1: metric sampling, threshold evaluation, journal log
// pattern scan, service probing, optional classifier upgrade, and
// debounce-gated admission to the Context Window and Issue Tracker.
//
// Grounded on the teacher's pkg/queue/worker.go ticker-driven worker
// loop shape (Start/Stop with a stopCh and sync.WaitGroup) and, for
// metrics, github.com/shirou/gopsutil/v4 — the system-metrics library
// used across the retrieved pack. Log scanning and service probing
// shell out via stdlib os/exec to journalctl/systemctl: no ecosystem
// journal-reader or service-manager client library appears anywhere in
// the pack (see DESIGN.md).
package triggerloop

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// Sampler collects the host metrics the Trigger Loop records each tick.
// Implemented by GopsutilSampler; swappable in tests.
type Sampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	Load1(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context, mountpoint string) (float64, error)
	NumCPU() int
}

// GopsutilSampler implements Sampler via github.com/shirou/gopsutil/v4.
type GopsutilSampler struct {
	RootMountpoint string
}

// NewGopsutilSampler builds a sampler reading the given root filesystem
// mountpoint ("/" by default).
func NewGopsutilSampler(rootMountpoint string) *GopsutilSampler {
	if rootMountpoint == "" {
		rootMountpoint = "/"
	}
	return &GopsutilSampler{RootMountpoint: rootMountpoint}
}

func (s *GopsutilSampler) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("read cpu percent: no samples returned")
	}
	return percents[0], nil
}

func (s *GopsutilSampler) MemoryPercent(ctx context.Context) (float64, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read memory stats: %w", err)
	}
	return stat.UsedPercent, nil
}

func (s *GopsutilSampler) Load1(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read load average: %w", err)
	}
	return avg.Load1, nil
}

func (s *GopsutilSampler) DiskPercent(ctx context.Context, mountpoint string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return 0, fmt.Errorf("read disk usage for %s: %w", mountpoint, err)
	}
	return usage.UsedPercent, nil
}

func (s *GopsutilSampler) NumCPU() int { return runtime.NumCPU() }

// SampleAll reads every metric the Trigger Loop tracks, building one
// MetricSample per name for host. Each read is independent: a failure
// on one metric does not prevent the others from being returned
// (spec.md §4.1 failure semantics: "sampling errors are logged and
// skipped for that tick").
func SampleAll(ctx context.Context, s Sampler, host string, ts time.Time) []domain.MetricSample {
	var out []domain.MetricSample

	if v, err := s.CPUPercent(ctx); err == nil {
		out = append(out, domain.MetricSample{Timestamp: ts, Host: host, Name: domain.MetricCPUPercent, Value: v, Unit: "percent"})
	}
	if v, err := s.MemoryPercent(ctx); err == nil {
		out = append(out, domain.MetricSample{Timestamp: ts, Host: host, Name: domain.MetricMemoryPercent, Value: v, Unit: "percent"})
	}
	if v, err := s.Load1(ctx); err == nil {
		out = append(out, domain.MetricSample{Timestamp: ts, Host: host, Name: domain.MetricLoad1, Value: v, Unit: "count"})
	}
	if v, err := s.DiskPercent(ctx, "/"); err == nil {
		out = append(out, domain.MetricSample{Timestamp: ts, Host: host, Name: domain.MetricDiskPercent, Value: v, Unit: "percent"})
	}
	return out
}
