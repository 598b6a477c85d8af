package triggerloop

import (
	"fmt"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// EvaluateThresholds compares samples against cfg and returns one
// metric_threshold candidate event per breach (spec.md §4.1 step 2).
// numCPU scales the load-average threshold (load > cores×2).
func EvaluateThresholds(samples []domain.MetricSample, cfg config.ThresholdsConfig, numCPU int, now time.Time) []domain.TriggerEvent {
	var out []domain.TriggerEvent

	for _, s := range samples {
		var threshold float64
		var breached bool

		switch s.Name {
		case domain.MetricCPUPercent:
			threshold = cfg.CPUPercent
			breached = s.Value > threshold
		case domain.MetricMemoryPercent:
			threshold = cfg.MemoryPercent
			breached = s.Value > threshold
		case domain.MetricDiskPercent:
			threshold = cfg.DiskPercent
			breached = s.Value > threshold
		case domain.MetricLoad1:
			cores := numCPU
			if cores <= 0 {
				cores = 1
			}
			threshold = cfg.LoadPerCore * float64(cores)
			breached = s.Value > threshold
		default:
			continue
		}

		if !breached {
			continue
		}

		reason := fmt.Sprintf("%s=%.2f exceeds threshold %.2f", s.Name, s.Value, threshold)
		out = append(out, domain.NewTriggerEvent(now, domain.TriggerKindMetricThreshold, domain.SeverityWarning, s.Name, reason, map[string]string{
			"host": s.Host, "value": fmt.Sprintf("%.2f", s.Value), "threshold": fmt.Sprintf("%.2f", threshold),
		}))
	}

	return out
}
