// Package executor is the gatekeeper for all state-changing operations
// (spec.md §4.4): policy check, autonomy gate, queue persistence (via
// pkg/approvalqueue), shell-level actuation, and outcome recording.
//
// Grounded on the teacher's pkg/queue/executor_helpers.go validation and
// allow-list idioms (adapted from MCP tool-call validation to shell
// command/protected-service validation) and pkg/queue/executor.go's
// pipeline shape (validate → run → record outcome). Command execution
// itself uses stdlib os/exec: no process-execution or service-manager
// client library appears anywhere in the retrieved pack, so invoking
// systemctl/journalctl as subprocesses is the only available mechanism.
package executor

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// destructiveVerbs are the systemctl/service-manager verbs the policy
// check treats as state-changing when combined with a protected service
// (spec.md §4.4 step 1).
var destructiveVerbs = []string{"stop", "disable", "mask", "kill"}

// PolicyError is returned by CheckPolicy when an action is rejected. It
// is terminal: the caller must not retry, only notify (spec.md §4.4
// failure semantics).
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// CheckPolicy rejects any action whose commands mention a protected
// service combined with a destructive verb.
func CheckPolicy(action domain.ProposedAction, protectedServices []string) error {
	for _, cmd := range action.Commands {
		lower := strings.ToLower(cmd)
		for _, svc := range protectedServices {
			if !strings.Contains(lower, strings.ToLower(svc)) {
				continue
			}
			for _, verb := range destructiveVerbs {
				if strings.Contains(lower, verb) {
					return &PolicyError{Reason: fmt.Sprintf(
						"command %q targets protected service %q with destructive verb %q", cmd, svc, verb)}
				}
			}
		}
	}
	return nil
}

// Disposition is the autonomy gate's verdict for a proposed action.
type Disposition string

// Recognized dispositions (spec.md §4.4 step 2).
const (
	DispositionExecuteImmediately Disposition = "execute_immediately"
	DispositionQueue              Disposition = "queue"
)

// Gate applies the four-level autonomy policy to decide whether action
// executes immediately or is queued for approval.
func Gate(level config.AutonomyLevel, action domain.ProposedAction) Disposition {
	switch level {
	case config.AutonomyAutoSafe:
		if action.Risk == domain.RiskLow {
			return DispositionExecuteImmediately
		}
	case config.AutonomyAutoFull:
		if action.Risk == domain.RiskLow || action.Risk == domain.RiskMedium {
			return DispositionExecuteImmediately
		}
	}
	return DispositionQueue
}
