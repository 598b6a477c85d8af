package metricsstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// MemoryAdapter is an in-process implementation of Adapter, used by unit
// tests and by the `check` single-shot CLI mode where standing up
// Postgres is unnecessary.
type MemoryAdapter struct {
	mu      sync.RWMutex
	samples []domain.MetricSample
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

func (a *MemoryAdapter) InsertSample(_ context.Context, s domain.MetricSample) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, s)
	return nil
}

func (a *MemoryAdapter) QueryRange(_ context.Context, name, host string, from, to time.Time) ([]domain.MetricSample, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.MetricSample
	for _, s := range a.samples {
		if s.Name == name && s.Host == host && !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (a *MemoryAdapter) Aggregate(ctx context.Context, name, host string, from, to time.Time, step time.Duration, fn domain.AggregateFunc) ([]domain.AggregatePoint, error) {
	samples, err := a.QueryRange(ctx, name, host, from, to)
	if err != nil {
		return nil, err
	}
	if step <= 0 {
		step = time.Minute
	}

	buckets := map[int64][]float64{}
	for _, s := range samples {
		b := s.Timestamp.Unix() / int64(step.Seconds())
		buckets[b] = append(buckets[b], s.Value)
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]domain.AggregatePoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.AggregatePoint{
			Timestamp: time.Unix(k*int64(step.Seconds()), 0),
			Value:     reduce(buckets[k], fn),
		})
	}
	return out, nil
}

func reduce(values []float64, fn domain.AggregateFunc) float64 {
	if len(values) == 0 {
		return 0
	}
	switch fn {
	case domain.AggregateMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case domain.AggregateMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case domain.AggregateP95:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		idx := int(float64(len(sorted)-1) * 0.95)
		return sorted[idx]
	default:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
}

func (a *MemoryAdapter) EvictOlderThan(_ context.Context, retention time.Duration) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	kept := a.samples[:0]
	var evicted int64
	for _, s := range a.samples {
		if s.Timestamp.Before(cutoff) {
			evicted++
			continue
		}
		kept = append(kept, s)
	}
	a.samples = kept
	return evicted, nil
}
