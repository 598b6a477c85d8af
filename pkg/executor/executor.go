package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/sysdaemon/pkg/approvalqueue"
	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// OutcomeSink receives ActionOutcome-shaped records once an action
// finishes (spec.md §4.4 step 5: "write an ActionOutcome entry to the
// Context Window and append to the Issue's action list"). Implemented
// by the Orchestrator, which fans this out to pkg/contextwindow and
// pkg/issuetracker without this package importing either.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, action domain.QueuedAction)
}

// Notifier is the best-effort notification sink (spec.md §4.4 failure
// semantics: "protected-service rejection is terminal and surfaced via
// notification").
type Notifier interface {
	Notify(ctx context.Context, title, body string, priority string)
}

// Executor is the gatekeeper for all state-changing operations.
type Executor struct {
	cfg      config.ExecutorConfig
	runner   CommandRunner
	queue    *approvalqueue.Queue
	sink     OutcomeSink
	notifier Notifier
	idgen    func() string
}

// New builds an Executor. queue must already be wired back to this
// Executor as its approvalqueue.Executor (see Orchestrator wiring).
func New(cfg config.ExecutorConfig, queue *approvalqueue.Queue, sink OutcomeSink, notifier Notifier) *Executor {
	return &Executor{
		cfg:      cfg,
		runner:   ShellRunner{},
		queue:    queue,
		sink:     sink,
		notifier: notifier,
		idgen:    uuid.NewString,
	}
}

// WithRunner overrides the command runner, for tests.
func (e *Executor) WithRunner(r CommandRunner) *Executor {
	e.runner = r
	return e
}

// WithQueue binds the approval queue once it exists. Submit constructs
// the queue in terms of this Executor's Execute method, so the two are
// built in two steps: New(..., nil, ...) then WithQueue once the queue
// itself is constructed.
func (e *Executor) WithQueue(q *approvalqueue.Queue) *Executor {
	e.queue = q
	return e
}

// Submit is the Executor's single entry point for a freshly proposed
// action (spec.md §4.4 steps 1-3): policy check, then autonomy gate,
// then either immediate execution or queueing.
func (e *Executor) Submit(ctx context.Context, action domain.ProposedAction) (domain.QueuedAction, error) {
	if action.ID == "" {
		action.ID = e.idgen()
	}

	if err := CheckPolicy(action, e.cfg.ProtectedServices); err != nil {
		rejected := domain.QueuedAction{
			ProposedAction: action,
			QueueID:        -1,
			QueuedAt:       time.Now(),
			Status:         domain.QueuedRejected,
			FailureReason:  err.Error(),
		}
		if e.notifier != nil {
			e.notifier.Notify(ctx, "action rejected by policy", err.Error(), "high")
		}
		if e.sink != nil {
			e.sink.RecordOutcome(ctx, rejected)
		}
		return rejected, err
	}

	disposition := Gate(e.cfg.AutonomyLevel, action)

	// Backpressure (spec.md §5): once the approval queue's pending depth
	// is at the configured limit, auto-execution pauses and every new
	// proposal is forced to pending regardless of what the gate decided.
	if disposition == DispositionExecuteImmediately && e.cfg.QueueDepthLimit > 0 &&
		e.queue.PendingDepth() >= e.cfg.QueueDepthLimit {
		slog.Warn("executor backpressure: pending queue at depth limit, forcing action to pending",
			"queue_depth_limit", e.cfg.QueueDepthLimit, "action_id", action.ID)
		disposition = DispositionQueue
	}

	if disposition == DispositionQueue {
		return e.queue.Enqueue(action)
	}

	queued, err := e.queue.Enqueue(action)
	if err != nil {
		return domain.QueuedAction{}, fmt.Errorf("enqueue action before immediate execution: %w", err)
	}
	return e.queue.Approve(ctx, queued.QueueID)
}

// Execute implements approvalqueue.Executor: it runs action's commands
// and returns the captured output, letting the queue record the
// resulting executed/failed transition. Re-validates at execution time
// in case the target changed state since it was queued (SPEC_FULL.md §6
// Open Question resolution: re-validation re-runs the policy check and a
// lightweight existence probe for the action's subject).
func (e *Executor) Execute(ctx context.Context, action domain.QueuedAction) (string, error) {
	if err := CheckPolicy(action.ProposedAction, e.cfg.ProtectedServices); err != nil {
		return "", err
	}
	if err := e.probeSubjectExists(ctx, action); err != nil {
		return "", err
	}

	timeout := e.cfg.ActionTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	output, err := runAction(ctx, e.runner, action, timeout)
	if err != nil {
		slog.Error("action execution failed", "action_id", action.ID, "subject", action.Subject, "error", err)
	}

	if e.sink != nil {
		outcome := action
		outcome.Output = output
		if err != nil {
			outcome.Status = domain.QueuedFailed
			outcome.FailureReason = err.Error()
		} else {
			outcome.Status = domain.QueuedExecuted
		}
		e.sink.RecordOutcome(ctx, outcome)
	}

	return output, err
}

// probeSubjectExists is the lightweight existence probe half of
// re-validation (SPEC_FULL.md §6). Only service-oriented action kinds
// name a systemd unit as their subject; other kinds (cleanup,
// investigation, config_change) have no generic notion of "still
// exists" to probe, so they pass through unchecked. A probe failure is
// treated as state-unknown rather than rejected, matching the
// fail-quiet probing pkg/triggerloop already uses for service state.
func (e *Executor) probeSubjectExists(ctx context.Context, action domain.QueuedAction) error {
	if action.ActionKind != domain.ActionKindServiceRestart {
		return nil
	}

	out, err := e.runner.Run(ctx, fmt.Sprintf("systemctl list-unit-files %s*", action.Subject), 10*time.Second)
	if err != nil {
		return nil
	}
	if !strings.Contains(out, action.Subject) {
		return fmt.Errorf("action %s subject %q no longer exists", action.ID, action.Subject)
	}
	return nil
}
