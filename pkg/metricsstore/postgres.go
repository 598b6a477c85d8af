package metricsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// PostgresAdapter implements Adapter against the metric_samples table.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresAdapter wraps an existing pool.
func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func (a *PostgresAdapter) InsertSample(ctx context.Context, s domain.MetricSample) error {
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO metric_samples (ts, host, name, value, unit, tags) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.Timestamp, s.Host, s.Name, s.Value, s.Unit, tags)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) QueryRange(ctx context.Context, name, host string, from, to time.Time) ([]domain.MetricSample, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT ts, host, name, value, unit, tags FROM metric_samples
		 WHERE name = $1 AND host = $2 AND ts >= $3 AND ts <= $4
		 ORDER BY ts ASC`,
		name, host, from, to)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	var out []domain.MetricSample
	for rows.Next() {
		var s domain.MetricSample
		var tags []byte
		if err := rows.Scan(&s.Timestamp, &s.Host, &s.Name, &s.Value, &s.Unit, &tags); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if len(tags) > 0 {
			_ = json.Unmarshal(tags, &s.Tags)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// aggSQL maps an AggregateFunc to its SQL reduction. p95 uses
// percentile_cont, the rest are plain SQL aggregates.
func aggSQL(fn domain.AggregateFunc) string {
	switch fn {
	case domain.AggregateMax:
		return "max(value)"
	case domain.AggregateMin:
		return "min(value)"
	case domain.AggregateP95:
		return "percentile_cont(0.95) within group (order by value)"
	default:
		return "avg(value)"
	}
}

func (a *PostgresAdapter) Aggregate(ctx context.Context, name, host string, from, to time.Time, step time.Duration, fn domain.AggregateFunc) ([]domain.AggregatePoint, error) {
	query := fmt.Sprintf(`
		SELECT to_timestamp(floor(extract(epoch from ts) / $5) * $5) AS bucket, %s AS v
		FROM metric_samples
		WHERE name = $1 AND host = $2 AND ts >= $3 AND ts <= $4
		GROUP BY bucket
		ORDER BY bucket ASC`, aggSQL(fn))

	rows, err := a.pool.Query(ctx, query, name, host, from, to, step.Seconds())
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	defer rows.Close()

	var out []domain.AggregatePoint
	for rows.Next() {
		var p domain.AggregatePoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan aggregate point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) EvictOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := a.pool.Exec(ctx, `DELETE FROM metric_samples WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict: %w", err)
	}
	return tag.RowsAffected(), nil
}
