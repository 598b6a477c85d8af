package triggerloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

func TestEvaluateThresholdsFlagsBreach(t *testing.T) {
	samples := []domain.MetricSample{
		{Name: domain.MetricCPUPercent, Value: 95, Host: "h"},
		{Name: domain.MetricMemoryPercent, Value: 50, Host: "h"},
	}
	cfg := config.ThresholdsConfig{CPUPercent: 90, MemoryPercent: 90}

	events := EvaluateThresholds(samples, cfg, 4, time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, domain.TriggerKindMetricThreshold, events[0].Kind)
	assert.Equal(t, domain.MetricCPUPercent, events[0].Subject)
}

func TestEvaluateThresholdsScalesLoadByCores(t *testing.T) {
	samples := []domain.MetricSample{{Name: domain.MetricLoad1, Value: 9, Host: "h"}}
	cfg := config.ThresholdsConfig{LoadPerCore: 2}

	assert.Empty(t, EvaluateThresholds(samples, cfg, 8, time.Now()))
	assert.Len(t, EvaluateThresholds(samples, cfg, 4, time.Now()), 1)
}
