package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/masking"
)

// CommandRunner executes a single shell command with a timeout and
// returns its combined, redacted output. Swappable for tests.
type CommandRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (output string, err error)
}

// ShellRunner runs commands via `sh -c`, matching the teacher's
// allow-listed-command execution shape (pkg/queue/executor_helpers.go)
// adapted from MCP tool invocation to direct shell actuation.
type ShellRunner struct{}

// Run executes command, capturing combined stdout/stderr and redacting
// secret-shaped substrings before returning.
func (ShellRunner) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := masking.Redact(buf.String())

	if runCtx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %s: %s", timeout, command)
	}
	if err != nil {
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}

// runAction executes the commands for action per its ActionKind,
// applying the rebuild-requires-successful-dry-run rule from spec.md
// §4.4 step 4.
func runAction(ctx context.Context, runner CommandRunner, action domain.QueuedAction, timeout time.Duration) (string, error) {
	if action.ActionKind == domain.ActionKindRebuild {
		return runRebuildWithDryRun(ctx, runner, action, timeout)
	}
	return runCommands(ctx, runner, action.Commands, timeout)
}

func runCommands(ctx context.Context, runner CommandRunner, commands []string, timeout time.Duration) (string, error) {
	var combined bytes.Buffer
	for _, cmd := range commands {
		out, err := runner.Run(ctx, cmd, timeout)
		combined.WriteString(out)
		if err != nil {
			return combined.String(), err
		}
		combined.WriteString("\n")
	}
	return combined.String(), nil
}

// runRebuildWithDryRun requires the action's first command to be a
// dry-run variant (by convention, commands[0]); the remaining commands
// only run if it succeeds. Dry-run failure aborts without touching
// system state (spec.md §4.4 failure semantics).
func runRebuildWithDryRun(ctx context.Context, runner CommandRunner, action domain.QueuedAction, timeout time.Duration) (string, error) {
	if len(action.Commands) == 0 {
		return "", fmt.Errorf("rebuild action %s has no commands", action.ID)
	}

	dryRunOutput, err := runner.Run(ctx, action.Commands[0], timeout)
	if err != nil {
		return dryRunOutput, fmt.Errorf("rebuild dry-run failed, aborting: %w", err)
	}
	if len(action.Commands) == 1 {
		return dryRunOutput, nil
	}

	rest, err := runCommands(ctx, runner, action.Commands[1:], timeout)
	return dryRunOutput + "\n" + rest, err
}
