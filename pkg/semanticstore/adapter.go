// Package semanticstore implements the semantic store adapter named in
// spec.md §6: upsert_issue, query_issues, upsert_knowledge,
// query_knowledge, upsert_system, list_systems.
//
// Grounded on the teacher's pkg/database connection-pool pattern and
// pkg/runbook/cache.go TTL-cache idiom (reused here for the in-memory
// adapter's simplicity). Similarity search is trigram-based (pg_trgm)
// rather than vector/embedding-based: no vector-store client library
// appears anywhere in the retrieved pack (see DESIGN.md and
// SPEC_FULL.md §4.8); the interface is written so an embedding-backed
// implementation is a drop-in replacement later.
package semanticstore

import (
	"context"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// KnowledgeEntry is a stored knowledge-base snippet available for
// similarity queries from the Meta Reasoner (spec.md §4.3).
type KnowledgeEntry struct {
	ID      string
	Title   string
	Content string
}

// System is a registered host/system record (spec.md §6 upsert_system /
// list_systems).
type System struct {
	ID   string
	Host string
	Doc  map[string]string
}

// Adapter is the narrow interface the rest of the system depends on.
type Adapter interface {
	UpsertIssue(ctx context.Context, issue domain.Issue) error
	QueryIssues(ctx context.Context, text string, k int) ([]domain.Issue, error)
	UpsertKnowledge(ctx context.Context, entry KnowledgeEntry) error
	QueryKnowledge(ctx context.Context, text string, k int) ([]KnowledgeEntry, error)
	UpsertSystem(ctx context.Context, sys System) error
	ListSystems(ctx context.Context) ([]System, error)
}
