package issuetracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
)

func newTestTracker(now time.Time) (*Tracker, *semanticstore.MemoryAdapter) {
	store := semanticstore.NewMemoryAdapter()
	counter := 0
	tracker := New(store, time.Hour).
		WithClock(func() time.Time { return now }).
		WithIDGen(func() string {
			counter++
			return "issue-" + string(rune('a'+counter-1))
		})
	return tracker, store
}

func event(host, subject string, severity domain.Severity, reason string) domain.TriggerEvent {
	e := domain.NewTriggerEvent(time.Now(), domain.TriggerKindMetricThreshold, severity, subject, reason, map[string]string{"host": host})
	return e
}

func TestAdmitTriggerEventCreatesNewIssue(t *testing.T) {
	now := time.Now()
	tracker, store := newTestTracker(now)

	tracker.AdmitTriggerEvent(context.Background(), event("h1", "cpu_percent", domain.SeverityWarning, "cpu high"))

	issues, err := store.QueryIssues(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, domain.IssueOpen, issues[0].Status)
	assert.Equal(t, "h1", issues[0].Host)
}

func TestAdmitTriggerEventAppendsToOpenIssue(t *testing.T) {
	now := time.Now()
	tracker, store := newTestTracker(now)
	ctx := context.Background()

	tracker.AdmitTriggerEvent(ctx, event("h1", "cpu_percent", domain.SeverityWarning, "cpu high"))
	tracker.AdmitTriggerEvent(ctx, event("h1", "cpu_percent", domain.SeverityCritical, "cpu still high"))

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, domain.SeverityCritical, issues[0].Severity)
	assert.Len(t, issues[0].Investigations, 1)
}

func TestAdmitTriggerEventSeparatesByHost(t *testing.T) {
	now := time.Now()
	tracker, store := newTestTracker(now)
	ctx := context.Background()

	tracker.AdmitTriggerEvent(ctx, event("h1", "cpu_percent", domain.SeverityWarning, "cpu high"))
	tracker.AdmitTriggerEvent(ctx, event("h2", "cpu_percent", domain.SeverityWarning, "cpu high"))

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestResolveThenReopenWithinCooldownCreatesNewIssue(t *testing.T) {
	now := time.Now()
	tracker, store := newTestTracker(now)
	ctx := context.Background()

	e := event("h1", "cpu_percent", domain.SeverityWarning, "cpu high")
	tracker.AdmitTriggerEvent(ctx, e)
	require.NoError(t, tracker.Resolve(ctx, "h1", "cpu_percent", "rebooted"))

	tracker.AdmitTriggerEvent(ctx, e)

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 2, "reopening within cooldown should create a fresh issue, not mutate the resolved one")

	var resolvedCount, openCount int
	for _, iss := range issues {
		switch iss.Status {
		case domain.IssueResolved:
			resolvedCount++
		case domain.IssueOpen:
			openCount++
		}
	}
	assert.Equal(t, 1, resolvedCount)
	assert.Equal(t, 1, openCount)
}

func TestReopenAfterCooldownElapsesReusesIssue(t *testing.T) {
	now := time.Now()
	store := semanticstore.NewMemoryAdapter()
	current := now
	counter := 0
	tracker := New(store, time.Hour).
		WithClock(func() time.Time { return current }).
		WithIDGen(func() string {
			counter++
			return "issue-" + string(rune('a'+counter-1))
		})
	ctx := context.Background()

	e := event("h1", "cpu_percent", domain.SeverityWarning, "cpu high")
	tracker.AdmitTriggerEvent(ctx, e)
	require.NoError(t, tracker.Resolve(ctx, "h1", "cpu_percent", "rebooted"))

	current = current.Add(2 * time.Hour)
	tracker.AdmitTriggerEvent(ctx, e)

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 1, "reopening after cooldown elapses should reuse the same issue")
	assert.Equal(t, domain.IssueInvestigating, issues[0].Status)
	assert.Nil(t, issues[0].ResolvedAt)
}

func TestClosedIssueNeverReopens(t *testing.T) {
	now := time.Now()
	store := semanticstore.NewMemoryAdapter()
	counter := 0
	tracker := New(store, time.Hour).
		WithClock(func() time.Time { return now }).
		WithIDGen(func() string {
			counter++
			return "issue-" + string(rune('a'+counter-1))
		})
	ctx := context.Background()

	e := event("h1", "cpu_percent", domain.SeverityWarning, "cpu high")
	tracker.AdmitTriggerEvent(ctx, e)

	issues, _ := store.QueryIssues(ctx, "", 10)
	closed := issues[0]
	closed.Status = domain.IssueClosed
	require.NoError(t, store.UpsertIssue(ctx, closed))
	require.NoError(t, tracker.LoadIndex(ctx))

	tracker.AdmitTriggerEvent(ctx, e)

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, issues, 2, "a closed issue must never reopen")
}

func TestRecordOutcomeUpdatesMostRecentIssueForSubject(t *testing.T) {
	now := time.Now()
	tracker, store := newTestTracker(now)
	ctx := context.Background()

	tracker.AdmitTriggerEvent(ctx, event("h1", "cpu_percent", domain.SeverityWarning, "cpu high"))

	action := domain.QueuedAction{
		ProposedAction: domain.ProposedAction{ID: "a1", Subject: "cpu_percent", Description: "restart service"},
		Status:         domain.QueuedExecuted,
	}
	tracker.RecordOutcome(ctx, action)

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Len(t, issues[0].Actions, 1)
	assert.Equal(t, "a1", issues[0].Actions[0].ID)
}

func TestRecordOutcomeDropsWhenNoTrackedIssue(t *testing.T) {
	tracker, store := newTestTracker(time.Now())
	ctx := context.Background()

	tracker.RecordOutcome(ctx, domain.QueuedAction{ProposedAction: domain.ProposedAction{ID: "a1", Subject: "unknown"}})

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLoadIndexRebuildsFromStore(t *testing.T) {
	now := time.Now()
	store := semanticstore.NewMemoryAdapter()
	require.NoError(t, store.UpsertIssue(context.Background(), domain.Issue{
		ID: "issue-preexisting", Host: "h1", Subject: "disk_percent",
		Status: domain.IssueOpen, CreatedAt: now, UpdatedAt: now,
	}))

	tracker := New(store, time.Hour).WithClock(func() time.Time { return now })
	require.NoError(t, tracker.LoadIndex(context.Background()))

	tracker.AdmitTriggerEvent(context.Background(), event("h1", "disk_percent", domain.SeverityCritical, "disk full"))

	issues, err := store.QueryIssues(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 1, "LoadIndex should have found the pre-existing issue instead of creating a new one")
	assert.Equal(t, "issue-preexisting", issues[0].ID)
}

func TestCloseThenReopenAlwaysCreatesNewIssue(t *testing.T) {
	now := time.Now()
	tracker, store := newTestTracker(now)
	ctx := context.Background()

	e := event("h1", "cpu_percent", domain.SeverityWarning, "cpu high")
	tracker.AdmitTriggerEvent(ctx, e)
	require.NoError(t, tracker.Close(ctx, "h1", "cpu_percent", "dismissed by operator"))

	tracker.AdmitTriggerEvent(ctx, e)

	issues, err := store.QueryIssues(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, issues, 2, "a closed issue should never reopen, even long after closing")

	var closedCount, openCount int
	for _, iss := range issues {
		switch iss.Status {
		case domain.IssueClosed:
			closedCount++
			assert.Equal(t, "dismissed by operator", iss.Resolution)
		case domain.IssueOpen:
			openCount++
		}
	}
	assert.Equal(t, 1, closedCount)
	assert.Equal(t, 1, openCount)
}

func TestCloseWithNoTrackedIssueErrors(t *testing.T) {
	tracker, _ := newTestTracker(time.Now())
	err := tracker.Close(context.Background(), "h1", "unknown_subject", "n/a")
	assert.Error(t, err)
}
