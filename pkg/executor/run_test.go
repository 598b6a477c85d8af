package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

type scriptedRunner struct {
	outputs []string
	errs    []error
	call    int
	calls   []string
}

func (s *scriptedRunner) Run(_ context.Context, command string, _ time.Duration) (string, error) {
	s.calls = append(s.calls, command)
	idx := s.call
	s.call++
	var out string
	var err error
	if idx < len(s.outputs) {
		out = s.outputs[idx]
	}
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	return out, err
}

func TestRunRebuildAbortsOnDryRunFailure(t *testing.T) {
	runner := &scriptedRunner{outputs: []string{"dry run failed"}, errs: []error{errors.New("bad plan")}}
	action := domain.QueuedAction{
		ProposedAction: domain.ProposedAction{
			ActionKind: domain.ActionKindRebuild,
			Commands:   []string{"rebuild --dry-run", "rebuild --apply"},
		},
	}

	_, err := runAction(context.Background(), runner, action, time.Second)
	require.Error(t, err)
	assert.Len(t, runner.calls, 1, "apply command must never run after a failed dry run")
}

func TestRunRebuildProceedsAfterSuccessfulDryRun(t *testing.T) {
	runner := &scriptedRunner{outputs: []string{"dry run ok", "applied"}}
	action := domain.QueuedAction{
		ProposedAction: domain.ProposedAction{
			ActionKind: domain.ActionKindRebuild,
			Commands:   []string{"rebuild --dry-run", "rebuild --apply"},
		},
	}

	output, err := runAction(context.Background(), runner, action, time.Second)
	require.NoError(t, err)
	assert.Contains(t, output, "dry run ok")
	assert.Contains(t, output, "applied")
	assert.Len(t, runner.calls, 2)
}

func TestRunCommandsStopsAtFirstFailure(t *testing.T) {
	runner := &scriptedRunner{outputs: []string{"a", "b"}, errs: []error{nil, errors.New("boom")}}
	_, err := runCommands(context.Background(), runner, []string{"one", "two", "three"}, time.Second)
	require.Error(t, err)
	assert.Len(t, runner.calls, 2)
}
