// Package approvalqueue implements the Executor's approval queue
// (spec.md §4.4): monotonic-id queued actions, a pending → approved →
// {executed, failed} | rejected state machine, and atomic on-disk
// persistence across restarts.
//
// Grounded on the teacher's pkg/queue mutex-guarded registry idiom
// (pool.go's activeSessions map + sync.RWMutex) for the in-memory index,
// and on pkg/queue/types.go's status-enum-as-state-machine shape; the
// teacher's own queue is database-backed (ent/Postgres) rather than
// file-backed, so the JSONL-plus-snapshot persistence format itself is
// new — built to the exact shape spec.md §6 names (append-only JSONL,
// latest-snapshot file for O(1) restore).
package approvalqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// ErrNotFound is returned when an operation references an unknown queue id.
var ErrNotFound = errors.New("queued action not found")

// ErrInvalidTransition is returned when a caller attempts an illegal
// state-machine transition (spec.md §4.4/§8).
var ErrInvalidTransition = errors.New("invalid queued-action state transition")

// Executor is the narrow interface the queue invokes to run an approved
// action. Implemented by pkg/executor.
type Executor interface {
	Execute(ctx context.Context, action domain.QueuedAction) (output string, err error)
}

// Clock supplies the current time; injected so tests are deterministic.
type Clock func() time.Time

// Queue is the in-memory, disk-backed approval queue. Safe for
// concurrent use.
type Queue struct {
	mu     sync.Mutex
	byID   map[int64]*domain.QueuedAction
	order  []int64
	nextID int64

	store    *Store
	executor Executor
	clock    Clock
}

// New builds a Queue backed by store, optionally wired to executor for
// Approve's immediate-execution step. executor may be nil (e.g. a
// read-only `issues list` CLI invocation never approves anything).
func New(store *Store, executor Executor) *Queue {
	return &Queue{
		byID:     make(map[int64]*domain.QueuedAction),
		store:    store,
		executor: executor,
		clock:    time.Now,
	}
}

// WithClock overrides the queue's time source, for deterministic tests.
func (q *Queue) WithClock(c Clock) *Queue {
	q.clock = c
	return q
}

// Load restores the queue's state from disk (snapshot then replaying any
// JSONL entries written after the snapshot), per spec.md §6.
func (q *Queue) Load() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Load()
	if err != nil {
		return fmt.Errorf("load approval queue: %w", err)
	}

	for i := range entries {
		e := entries[i]
		q.byID[e.QueueID] = &e
		q.order = append(q.order, e.QueueID)
		if e.QueueID >= q.nextID {
			q.nextID = e.QueueID + 1
		}
	}
	return nil
}

// Enqueue assigns a monotonic queue id to action and persists it in
// pending status.
func (q *Queue) Enqueue(action domain.ProposedAction) (domain.QueuedAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID
	q.nextID++

	queued := domain.QueuedAction{
		ProposedAction: action,
		QueueID:        id,
		QueuedAt:       q.clock(),
		Status:         domain.QueuedPending,
	}

	if err := q.store.Append(queued); err != nil {
		return domain.QueuedAction{}, fmt.Errorf("persist queued action %d: %w", id, err)
	}

	q.byID[id] = &queued
	q.order = append(q.order, id)
	return queued, nil
}

// List returns all queued actions, oldest first.
func (q *Queue) List() []domain.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueuedAction, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.byID[id])
	}
	return out
}

// PendingDepth returns the count of actions still awaiting approval,
// used by the Executor's backpressure check (spec.md §5).
func (q *Queue) PendingDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, id := range q.order {
		if q.byID[id].Status == domain.QueuedPending {
			n++
		}
	}
	return n
}

// Get returns a single queued action by id.
func (q *Queue) Get(id int64) (domain.QueuedAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.byID[id]
	if !ok {
		return domain.QueuedAction{}, ErrNotFound
	}
	return *a, nil
}

// Approve transitions id to approved and, if an executor is wired,
// immediately invokes it and records the resulting executed/failed
// terminal state (spec.md §4.4: "Approval transitions a queued entry to
// approved and immediately executes").
func (q *Queue) Approve(ctx context.Context, id int64) (domain.QueuedAction, error) {
	if _, err := q.transition(id, domain.QueuedApproved, nil); err != nil {
		return domain.QueuedAction{}, err
	}

	approved, err := q.Get(id)
	if err != nil {
		return domain.QueuedAction{}, err
	}
	if q.executor == nil {
		return approved, nil
	}

	output, execErr := q.executor.Execute(ctx, approved)
	ts := q.clock()
	if execErr != nil {
		return q.transition(id, domain.QueuedFailed, func(a *domain.QueuedAction) {
			a.Output = output
			a.FailureReason = execErr.Error()
			a.ExecutedAt = &ts
		})
	}
	return q.transition(id, domain.QueuedExecuted, func(a *domain.QueuedAction) {
		a.Output = output
		a.ExecutedAt = &ts
	})
}

// Reject transitions id to the terminal rejected state.
func (q *Queue) Reject(id int64, reason string) (domain.QueuedAction, error) {
	return q.transition(id, domain.QueuedRejected, func(a *domain.QueuedAction) {
		a.FailureReason = reason
	})
}

func (q *Queue) transition(id int64, to domain.QueuedStatus, mutate func(*domain.QueuedAction)) (domain.QueuedAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.byID[id]
	if !ok {
		return domain.QueuedAction{}, ErrNotFound
	}
	if !domain.ValidTransition(a.Status, to) {
		return domain.QueuedAction{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}

	a.Status = to
	if mutate != nil {
		mutate(a)
	}

	if err := q.store.Append(*a); err != nil {
		return domain.QueuedAction{}, fmt.Errorf("persist transition for %d: %w", id, err)
	}
	return *a, nil
}
