package domain

import "time"

// MetricSample is a single append-only time-series observation.
type MetricSample struct {
	Timestamp time.Time         `json:"timestamp"`
	Host      string            `json:"host"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Well-known metric names sampled by the Trigger Loop.
const (
	MetricCPUPercent    = "cpu_pct"
	MetricMemoryPercent = "mem_pct"
	MetricLoad1         = "load1"
	MetricDiskPercent   = "disk_pct"
	MetricServiceActive = "service_active" // 1 = active, 0 = not
)

// AggregateFunc names the reduction applied by Adapter.Aggregate.
type AggregateFunc string

// Supported aggregate functions.
const (
	AggregateAvg AggregateFunc = "avg"
	AggregateMax AggregateFunc = "max"
	AggregateMin AggregateFunc = "min"
	AggregateP95 AggregateFunc = "p95"
)

// AggregatePoint is one bucket of an Aggregate query result.
type AggregatePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
