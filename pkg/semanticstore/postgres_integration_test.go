package semanticstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/codeready-toolchain/sysdaemon/pkg/database"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// TestPostgresAdapterIssueRoundTripAndSimilarity exercises the adapter
// against a real Postgres instance with pg_trgm enabled. Skipped under
// `go test -short`, matching the teacher's test/database integration
// suite.
func TestPostgresAdapterIssueRoundTripAndSimilarity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("sysdaemon"),
		postgres.WithUsername("sysdaemon"),
		postgres.WithPassword("sysdaemon"),
	)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dbClient, err := database.NewClient(ctx, dsn, 0)
	require.NoError(t, err)
	defer dbClient.Close()

	adapter := NewPostgresAdapter(dbClient.Pool)
	now := time.Now().Truncate(time.Second)

	require.NoError(t, adapter.UpsertIssue(ctx, domain.Issue{
		ID: "issue-1", Host: "host-a", Subject: "disk", Title: "disk full on /var",
		Description: "cleanup job failing repeatedly", Severity: domain.SeverityWarning,
		Status: domain.IssueOpen, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, adapter.UpsertIssue(ctx, domain.Issue{
		ID: "issue-2", Host: "host-a", Subject: "sshd", Title: "sshd restart loop",
		Description: "unrelated to disk", Severity: domain.SeverityCritical,
		Status: domain.IssueOpen, CreatedAt: now, UpdatedAt: now,
	}))

	found, err := adapter.QueryIssues(ctx, "disk full", 5)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	require.Equal(t, "issue-1", found[0].ID)

	require.NoError(t, adapter.UpsertKnowledge(ctx, KnowledgeEntry{
		ID: "kb-1", Title: "disk cleanup runbook", Content: "when disk usage is high, run the cleanup job",
	}))
	kbFound, err := adapter.QueryKnowledge(ctx, "disk usage high", 5)
	require.NoError(t, err)
	require.NotEmpty(t, kbFound)

	require.NoError(t, adapter.UpsertSystem(ctx, System{ID: "sys-1", Host: "host-a", Doc: map[string]string{"role": "web"}}))
	systems, err := adapter.ListSystems(ctx)
	require.NoError(t, err)
	require.Len(t, systems, 1)
	require.Equal(t, "host-a", systems[0].Host)
}
