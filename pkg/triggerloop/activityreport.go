package triggerloop

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// BuildActivityReport samples a point-in-time CPU/memory/IO/network
// snapshot for the Context Window's activity line (spec.md §6). Resolves
// Open Question (b): any sampling failure yields a zero-value report
// with Unavailable set rather than an error, so a host missing one data
// source (e.g. a container with no disk counters) still gets the rest.
func BuildActivityReport(ctx context.Context, sampler Sampler) domain.ActivityReport {
	now := time.Now()

	cpuPct, err := sampler.CPUPercent(ctx)
	if err != nil {
		return domain.ActivityReport{Timestamp: now, Unavailable: true}
	}
	memPct, err := sampler.MemoryPercent(ctx)
	if err != nil {
		return domain.ActivityReport{Timestamp: now, Unavailable: true}
	}

	return domain.ActivityReport{
		Timestamp:  now,
		CPUPercent: cpuPct,
		MemPercent: memPct,
		IOStats:    ioStatsSummary(ctx),
		NetStats:   netStatsSummary(ctx),
	}
}

func ioStatsSummary(ctx context.Context) string {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil || len(counters) == 0 {
		return ""
	}
	var readBytes, writeBytes uint64
	for _, c := range counters {
		readBytes += c.ReadBytes
		writeBytes += c.WriteBytes
	}
	return fmt.Sprintf("read=%dMB write=%dMB", readBytes/(1<<20), writeBytes/(1<<20))
}

func netStatsSummary(ctx context.Context) string {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		return ""
	}
	c := counters[0]
	return fmt.Sprintf("sent=%dMB recv=%dMB", c.BytesSent/(1<<20), c.BytesRecv/(1<<20))
}
