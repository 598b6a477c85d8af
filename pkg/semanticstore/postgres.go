package semanticstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// PostgresAdapter implements Adapter on top of the issues/
// knowledge_entries/systems tables, using pg_trgm similarity() for the
// "query_*" text-search operations.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresAdapter wraps an existing pool.
func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func (a *PostgresAdapter) UpsertIssue(ctx context.Context, issue domain.Issue) error {
	doc, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("marshal issue: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO issues (id, host, subject, title, description, severity, status, created_at, updated_at, resolved_at, document)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			host = EXCLUDED.host, subject = EXCLUDED.subject, title = EXCLUDED.title,
			description = EXCLUDED.description, severity = EXCLUDED.severity,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at,
			resolved_at = EXCLUDED.resolved_at, document = EXCLUDED.document`,
		issue.ID, issue.Host, issue.Subject, issue.Title, issue.Description,
		issue.Severity, issue.Status, issue.CreatedAt, issue.UpdatedAt, issue.ResolvedAt, doc)
	if err != nil {
		return fmt.Errorf("upsert issue: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) QueryIssues(ctx context.Context, text string, k int) ([]domain.Issue, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT document FROM issues
		WHERE $1 = '' OR similarity(title || ' ' || description, $1) > 0.1
		ORDER BY CASE WHEN $1 = '' THEN 0 ELSE similarity(title || ' ' || description, $1) END DESC, updated_at DESC
		LIMIT $2`, text, k)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var out []domain.Issue
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		var issue domain.Issue
		if err := json.Unmarshal(doc, &issue); err != nil {
			return nil, fmt.Errorf("unmarshal issue: %w", err)
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) UpsertKnowledge(ctx context.Context, entry KnowledgeEntry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO knowledge_entries (id, title, content, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content`,
		entry.ID, entry.Title, entry.Content)
	if err != nil {
		return fmt.Errorf("upsert knowledge: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) QueryKnowledge(ctx context.Context, text string, k int) ([]KnowledgeEntry, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, title, content FROM knowledge_entries
		WHERE $1 = '' OR similarity(content, $1) > 0.1
		ORDER BY CASE WHEN $1 = '' THEN 0 ELSE similarity(content, $1) END DESC
		LIMIT $2`, text, k)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeEntry
	for rows.Next() {
		var e KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Content); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) UpsertSystem(ctx context.Context, sys System) error {
	doc, err := json.Marshal(sys.Doc)
	if err != nil {
		return fmt.Errorf("marshal system doc: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO systems (id, host, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET host = EXCLUDED.host, document = EXCLUDED.document, updated_at = now()`,
		sys.ID, sys.Host, doc)
	if err != nil {
		return fmt.Errorf("upsert system: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) ListSystems(ctx context.Context) ([]System, error) {
	rows, err := a.pool.Query(ctx, `SELECT id, host, document FROM systems ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	defer rows.Close()

	var out []System
	for rows.Next() {
		var sys System
		var doc []byte
		if err := rows.Scan(&sys.ID, &sys.Host, &doc); err != nil {
			return nil, fmt.Errorf("scan system: %w", err)
		}
		_ = json.Unmarshal(doc, &sys.Doc)
		out = append(out, sys)
	}
	return out, rows.Err()
}
