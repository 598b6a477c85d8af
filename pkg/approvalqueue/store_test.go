package approvalqueue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "queue.jsonl"), filepath.Join(dir, "queue.snapshot.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAppendAndLoadReplaysJournal(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(domain.QueuedAction{QueueID: 0, Status: domain.QueuedPending, QueuedAt: time.Now()}))
	require.NoError(t, s.Append(domain.QueuedAction{QueueID: 1, Status: domain.QueuedPending, QueuedAt: time.Now()}))
	require.NoError(t, s.Append(domain.QueuedAction{QueueID: 0, Status: domain.QueuedApproved, QueuedAt: time.Now()}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, domain.QueuedApproved, loaded[0].Status)
	assert.Equal(t, domain.QueuedPending, loaded[1].Status)
}

func TestStoreCompactThenLoadReflectsSnapshot(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(domain.QueuedAction{QueueID: 0, Status: domain.QueuedPending, QueuedAt: time.Now()}))
	require.NoError(t, s.Compact([]domain.QueuedAction{{QueueID: 0, Status: domain.QueuedExecuted, QueuedAt: time.Now()}}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, domain.QueuedExecuted, loaded[0].Status)
}

func TestStoreLoadOnMissingFilesReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "queue.jsonl"), filepath.Join(dir, "missing-snapshot.json"))
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
