// Package metricsstore implements the time-series store adapter named in
// spec.md §6: insert_sample, query_range, aggregate, evict_older_than.
//
// Grounded on the teacher's pkg/database (connection pooling) and
// pkg/cleanup/service.go (periodic retention enforcement, adapted here
// into EvictOlderThan rather than session soft-deletes).
package metricsstore

import (
	"context"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// Adapter is the narrow interface the rest of the system depends on.
// The Postgres-backed implementation lives in postgres.go; an in-memory
// implementation for tests and single-shot CLI runs lives in memory.go.
type Adapter interface {
	InsertSample(ctx context.Context, s domain.MetricSample) error
	QueryRange(ctx context.Context, name, host string, from, to time.Time) ([]domain.MetricSample, error)
	Aggregate(ctx context.Context, name, host string, from, to time.Time, step time.Duration, fn domain.AggregateFunc) ([]domain.AggregatePoint, error)
	EvictOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}
