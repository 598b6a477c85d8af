package approvalqueue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

type stubExecutor struct {
	output string
	err    error
}

func (s stubExecutor) Execute(context.Context, domain.QueuedAction) (string, error) {
	return s.output, s.err
}

func newTestQueue(t *testing.T, exec Executor) *Queue {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "queue.jsonl"), filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, exec).WithClock(func() time.Time { return time.Unix(0, 0) })
}

func TestEnqueueAssignsMonotonicIDs(t *testing.T) {
	q := newTestQueue(t, nil)

	a1, err := q.Enqueue(domain.ProposedAction{Subject: "one"})
	require.NoError(t, err)
	a2, err := q.Enqueue(domain.ProposedAction{Subject: "two"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), a1.QueueID)
	assert.Equal(t, int64(1), a2.QueueID)
	assert.Equal(t, domain.QueuedPending, a1.Status)
}

func TestApproveWithoutExecutorLeavesActionApproved(t *testing.T) {
	q := newTestQueue(t, nil)
	a, err := q.Enqueue(domain.ProposedAction{Subject: "x"})
	require.NoError(t, err)

	approved, err := q.Approve(context.Background(), a.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedApproved, approved.Status)
}

func TestApproveExecutesAndRecordsSuccess(t *testing.T) {
	q := newTestQueue(t, stubExecutor{output: "restarted ok"})
	a, err := q.Enqueue(domain.ProposedAction{Subject: "x"})
	require.NoError(t, err)

	result, err := q.Approve(context.Background(), a.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedExecuted, result.Status)
	assert.Equal(t, "restarted ok", result.Output)
}

func TestApproveExecutesAndRecordsFailure(t *testing.T) {
	q := newTestQueue(t, stubExecutor{err: errors.New("boom")})
	a, err := q.Enqueue(domain.ProposedAction{Subject: "x"})
	require.NoError(t, err)

	result, err := q.Approve(context.Background(), a.QueueID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedFailed, result.Status)
	assert.Equal(t, "boom", result.FailureReason)
}

func TestRejectIsTerminal(t *testing.T) {
	q := newTestQueue(t, nil)
	a, err := q.Enqueue(domain.ProposedAction{Subject: "x"})
	require.NoError(t, err)

	rejected, err := q.Reject(a.QueueID, "policy violation")
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedRejected, rejected.Status)

	_, err = q.Approve(context.Background(), a.QueueID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOperationsOnUnknownIDReturnNotFound(t *testing.T) {
	q := newTestQueue(t, nil)

	_, err := q.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = q.Reject(42, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRestoresQueueFromDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "queue.jsonl"), filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)

	q1 := New(store, nil)
	a, err := q1.Enqueue(domain.ProposedAction{Subject: "x"})
	require.NoError(t, err)
	_, err = q1.Reject(a.QueueID, "no")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := NewStore(filepath.Join(dir, "queue.jsonl"), filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)
	defer store2.Close()

	q2 := New(store2, nil)
	require.NoError(t, q2.Load())
	list := q2.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.QueuedRejected, list[0].Status)
}
