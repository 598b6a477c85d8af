package executor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/approvalqueue"
	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

type fakeRunner struct {
	output string
	err    error
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, command string, _ time.Duration) (string, error) {
	f.calls = append(f.calls, command)
	return f.output, f.err
}

type recordingSink struct {
	outcomes []domain.QueuedAction
}

func (r *recordingSink) RecordOutcome(_ context.Context, action domain.QueuedAction) {
	r.outcomes = append(r.outcomes, action)
}

func newTestExecutor(t *testing.T, cfg config.ExecutorConfig) (*Executor, *fakeRunner, *recordingSink) {
	t.Helper()
	dir := t.TempDir()
	store, err := approvalqueue.NewStore(filepath.Join(dir, "q.jsonl"), filepath.Join(dir, "q.snapshot.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sink := &recordingSink{}
	exec := New(cfg, nil, sink, nil)
	runner := &fakeRunner{output: "ok"}
	exec.WithRunner(runner)

	q := approvalqueue.New(store, exec)
	exec.queue = q
	return exec, runner, sink
}

func TestSubmitRejectsProtectedServiceAction(t *testing.T) {
	cfg := config.ExecutorConfig{AutonomyLevel: config.AutonomyAutoFull, ProtectedServices: config.ProtectedServices()}
	exec, _, sink := newTestExecutor(t, cfg)

	result, err := exec.Submit(context.Background(), domain.ProposedAction{
		Subject: "sshd", Commands: []string{"systemctl stop sshd"}, Risk: domain.RiskLow,
	})
	require.Error(t, err)
	assert.Equal(t, domain.QueuedRejected, result.Status)
	require.Len(t, sink.outcomes, 1)
}

func TestSubmitQueuesUnderObserve(t *testing.T) {
	cfg := config.ExecutorConfig{AutonomyLevel: config.AutonomyObserve}
	exec, runner, _ := newTestExecutor(t, cfg)

	result, err := exec.Submit(context.Background(), domain.ProposedAction{
		Subject: "disk", Commands: []string{"true"}, Risk: domain.RiskLow,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedPending, result.Status)
	assert.Empty(t, runner.calls)
}

func TestSubmitExecutesImmediatelyUnderAutoSafeForLowRisk(t *testing.T) {
	cfg := config.ExecutorConfig{AutonomyLevel: config.AutonomyAutoSafe}
	exec, runner, sink := newTestExecutor(t, cfg)

	result, err := exec.Submit(context.Background(), domain.ProposedAction{
		Subject: "disk", Commands: []string{"true"}, Risk: domain.RiskLow,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedExecuted, result.Status)
	assert.Len(t, runner.calls, 1)
	require.Len(t, sink.outcomes, 1)
}

func TestExecuteRecordsFailureOnRunnerError(t *testing.T) {
	cfg := config.ExecutorConfig{AutonomyLevel: config.AutonomyAutoFull}
	exec, runner, _ := newTestExecutor(t, cfg)
	runner.err = errors.New("boom")

	result, err := exec.Submit(context.Background(), domain.ProposedAction{
		Subject: "disk", Commands: []string{"false"}, Risk: domain.RiskLow,
	})
	require.Error(t, err)
	assert.Equal(t, domain.QueuedFailed, result.Status)
}

func TestSubmitForcesToPendingOnceQueueDepthLimitReached(t *testing.T) {
	// Pin pending depth at the limit by queuing one action under Observe
	// (which never auto-executes), then switch to AutoFull and submit a
	// second low-risk action that would otherwise run immediately.
	cfg := config.ExecutorConfig{AutonomyLevel: config.AutonomyObserve, QueueDepthLimit: 1}
	exec, runner, _ := newTestExecutor(t, cfg)

	_, err := exec.Submit(context.Background(), domain.ProposedAction{
		Subject: "disk", Commands: []string{"true"}, Risk: domain.RiskLow,
	})
	require.NoError(t, err)
	require.Equal(t, 1, exec.queue.PendingDepth())

	exec.cfg.AutonomyLevel = config.AutonomyAutoFull
	result, err := exec.Submit(context.Background(), domain.ProposedAction{
		Subject: "cpu", Commands: []string{"true"}, Risk: domain.RiskLow,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueuedPending, result.Status, "queue at depth limit forces new proposals to pending")
	assert.Empty(t, runner.calls, "a forced-to-pending action must not run")
}

func TestExecuteProbesSubjectExistenceForServiceRestart(t *testing.T) {
	cfg := config.ExecutorConfig{}
	exec, runner, _ := newTestExecutor(t, cfg)
	runner.output = "UNIT FILE\nother.service enabled\n"

	queued := domain.QueuedAction{
		ProposedAction: domain.ProposedAction{
			Subject: "nginx", ActionKind: domain.ActionKindServiceRestart, Commands: []string{"systemctl restart nginx"},
		},
		Status: domain.QueuedApproved,
	}
	_, err := exec.Execute(context.Background(), queued)
	require.Error(t, err, "a vanished subject should fail re-validation before any command runs")
	assert.Contains(t, err.Error(), "no longer exists")
}

func TestExecuteRevalidatesPolicyAtRunTime(t *testing.T) {
	cfg := config.ExecutorConfig{ProtectedServices: config.ProtectedServices()}
	exec, _, _ := newTestExecutor(t, cfg)

	queued := domain.QueuedAction{
		ProposedAction: domain.ProposedAction{Commands: []string{"systemctl stop sshd"}},
		Status:         domain.QueuedApproved,
	}
	_, err := exec.Execute(context.Background(), queued)
	require.Error(t, err)
	var policyErr *PolicyError
	assert.ErrorAs(t, err, &policyErr)
}
