// Package issuetracker correlates admitted TriggerEvents and Executor
// outcomes into long-lived Issue records (spec.md §4.6). Issues persist
// through the Semantic Store Adapter rather than a bespoke store
// (SPEC_FULL.md §4.10): the same store that backs Review/Meta context
// retrieval.
//
// Grounded on the teacher's pkg/queue/pool.go mutex-guarded in-memory
// registry idiom, layered over semanticstore for persistence.
package issuetracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
)

// DefaultReopenCooldown is the spec.md §4.6 default: a resolved Issue
// may not reopen on the same fingerprint until this much time has
// elapsed since resolution.
const DefaultReopenCooldown = 24 * time.Hour

// Tracker implements triggerloop.Admitter and executor.OutcomeSink
// without importing either package, keeping issue correlation decoupled
// from its producers.
type Tracker struct {
	mu       sync.Mutex
	store    semanticstore.Adapter
	cooldown time.Duration
	idgen    func() string
	clock    func() time.Time

	// byHostSubject indexes the most-recently-touched issue per (host,
	// subject) pair, including resolved/closed ones, so AdmitTriggerEvent
	// can decide whether to append, reopen, or start a new issue without
	// a round trip through similarity search.
	byHostSubject map[string]*domain.Issue
	// bySubject indexes the most-recently-touched issue per subject
	// regardless of host, since ActionOutcome carries no host (spec.md
	// §4.6: "Each ActionOutcome updates the most-recent Issue for its
	// subject").
	bySubject map[string]*domain.Issue
}

// New builds a Tracker. cooldown <= 0 uses DefaultReopenCooldown.
func New(store semanticstore.Adapter, cooldown time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultReopenCooldown
	}
	return &Tracker{
		store:         store,
		cooldown:      cooldown,
		idgen:         uuid.NewString,
		clock:         time.Now,
		byHostSubject: make(map[string]*domain.Issue),
		bySubject:     make(map[string]*domain.Issue),
	}
}

// WithClock overrides the time source, for tests.
func (t *Tracker) WithClock(c func() time.Time) *Tracker {
	t.clock = c
	return t
}

// WithIDGen overrides the ID generator, for tests.
func (t *Tracker) WithIDGen(f func() string) *Tracker {
	t.idgen = f
	return t
}

func hostSubjectKey(host, subject string) string {
	return host + "|" + subject
}

// LoadIndex rebuilds the in-memory correlation index from the store at
// startup (e.g. after an Orchestrator restart). Best-effort: an empty
// text query falls back to "most recent first" in both adapter
// implementations.
func (t *Tracker) LoadIndex(ctx context.Context) error {
	issues, err := t.store.QueryIssues(ctx, "", 1000)
	if err != nil {
		return fmt.Errorf("load issue index: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range issues {
		issue := issues[i]
		t.index(&issue)
	}
	return nil
}

// index records issue as the latest-touched issue for its host/subject
// and subject-only keys, unless a more recently updated issue already
// holds that slot.
func (t *Tracker) index(issue *domain.Issue) {
	hsKey := hostSubjectKey(issue.Host, issue.Subject)
	if existing, ok := t.byHostSubject[hsKey]; !ok || !existing.UpdatedAt.After(issue.UpdatedAt) {
		t.byHostSubject[hsKey] = issue
	}
	if existing, ok := t.bySubject[issue.Subject]; !ok || !existing.UpdatedAt.After(issue.UpdatedAt) {
		t.bySubject[issue.Subject] = issue
	}
}

// AdmitTriggerEvent implements triggerloop.Admitter (spec.md §4.6): look
// up an open Issue matching (host, subject); append if present, else
// create. A resolved match within its reopen cooldown does not reopen —
// a fresh Issue is created instead so the event is never silently
// dropped. A closed match never reopens.
func (t *Tracker) AdmitTriggerEvent(ctx context.Context, event domain.TriggerEvent) {
	host := event.Metadata["host"]

	t.mu.Lock()
	issue := t.byHostSubject[hostSubjectKey(host, event.Subject)]
	now := t.clock()

	var toPersist domain.Issue
	switch {
	case issue == nil:
		toPersist = t.newIssue(host, event, now)
	case issue.Status == domain.IssueClosed:
		toPersist = t.newIssue(host, event, now)
	case issue.Status == domain.IssueResolved && issue.HasFingerprint(event.Fingerprint) &&
		issue.ResolvedAt != nil && now.Sub(*issue.ResolvedAt) < t.cooldown:
		toPersist = t.newIssue(host, event, now)
	case issue.Status == domain.IssueResolved:
		reopened := *issue
		reopened.Status = domain.IssueInvestigating
		reopened.ResolvedAt = nil
		reopened.UpdatedAt = now
		reopened.Severity = domain.Max(reopened.Severity, event.Severity)
		reopened.Investigations = append(reopened.Investigations, domain.Investigation{
			Timestamp: now, Author: domain.OriginTrigger,
			Summary: "reopened: " + event.Reason,
		})
		reopened.Fingerprints = appendFingerprint(reopened.Fingerprints, event.Fingerprint)
		toPersist = reopened
	default:
		updated := *issue
		updated.UpdatedAt = now
		updated.Severity = domain.Max(updated.Severity, event.Severity)
		updated.Investigations = append(updated.Investigations, domain.Investigation{
			Timestamp: now, Author: domain.OriginTrigger, Summary: event.Reason,
		})
		updated.Fingerprints = appendFingerprint(updated.Fingerprints, event.Fingerprint)
		toPersist = updated
	}
	t.index(&toPersist)
	t.mu.Unlock()

	if err := t.store.UpsertIssue(ctx, toPersist); err != nil {
		slog.Error("issue tracker: upsert failed", "issue_id", toPersist.ID, "subject", toPersist.Subject, "error", err)
	}
}

func (t *Tracker) newIssue(host string, event domain.TriggerEvent, now time.Time) domain.Issue {
	return domain.Issue{
		ID:             t.idgen(),
		Host:           host,
		Subject:        event.Subject,
		Title:          string(event.Kind) + ": " + event.Subject,
		Description:    event.Reason,
		Severity:       event.Severity,
		Status:         domain.IssueOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
		Fingerprints:   []string{event.Fingerprint},
		Investigations: nil,
	}
}

func appendFingerprint(fps []string, fp string) []string {
	for _, existing := range fps {
		if existing == fp {
			return fps
		}
	}
	return append(fps, fp)
}

// RecordOutcome implements executor.OutcomeSink (spec.md §4.6: "Each
// ActionOutcome updates the most-recent Issue for its subject").
// Outcomes for a subject with no tracked Issue are dropped: an action
// with no corresponding trigger history has nothing to correlate to.
func (t *Tracker) RecordOutcome(ctx context.Context, action domain.QueuedAction) {
	t.mu.Lock()
	issue := t.bySubject[action.Subject]
	if issue == nil {
		t.mu.Unlock()
		return
	}

	updated := *issue
	updated.UpdatedAt = t.clock()
	updated.Actions = append(append([]domain.ProposedAction{}, updated.Actions...), action.ProposedAction)
	t.index(&updated)
	t.mu.Unlock()

	if err := t.store.UpsertIssue(ctx, updated); err != nil {
		slog.Error("issue tracker: record outcome upsert failed", "issue_id", updated.ID, "subject", updated.Subject, "error", err)
	}
}

// Resolve marks the most-recent issue for (host, subject) resolved,
// starting its reopen cooldown.
func (t *Tracker) Resolve(ctx context.Context, host, subject, resolution string) error {
	t.mu.Lock()
	issue := t.byHostSubject[hostSubjectKey(host, subject)]
	if issue == nil {
		t.mu.Unlock()
		return fmt.Errorf("no tracked issue for host=%s subject=%s", host, subject)
	}
	now := t.clock()
	updated := *issue
	updated.Status = domain.IssueResolved
	updated.Resolution = resolution
	updated.ResolvedAt = &now
	updated.UpdatedAt = now
	t.index(&updated)
	t.mu.Unlock()

	return t.store.UpsertIssue(ctx, updated)
}

// Close marks the most-recent issue for (host, subject) closed: unlike
// Resolve, a closed Issue never reopens (AdmitTriggerEvent always starts
// a fresh Issue for a closed match), for operator-dismissed issues that
// should not resurrect automatically (CLI `issues close`).
func (t *Tracker) Close(ctx context.Context, host, subject, reason string) error {
	t.mu.Lock()
	issue := t.byHostSubject[hostSubjectKey(host, subject)]
	if issue == nil {
		t.mu.Unlock()
		return fmt.Errorf("no tracked issue for host=%s subject=%s", host, subject)
	}
	now := t.clock()
	updated := *issue
	updated.Status = domain.IssueClosed
	updated.Resolution = reason
	updated.UpdatedAt = now
	t.index(&updated)
	t.mu.Unlock()

	return t.store.UpsertIssue(ctx, updated)
}
