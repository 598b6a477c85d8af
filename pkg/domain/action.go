package domain

import "time"

// ActionKind enumerates the action classes the Executor understands.
type ActionKind string

// Recognized action kinds.
const (
	ActionKindServiceRestart ActionKind = "service_restart"
	ActionKindCleanup        ActionKind = "cleanup"
	ActionKindInvestigation  ActionKind = "investigation"
	ActionKindConfigChange   ActionKind = "config_change"
	ActionKindRebuild        ActionKind = "rebuild"
)

// Risk is the Executor's classification of a proposed action.
type Risk string

// Recognized risk levels.
const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Origin identifies which reasoner (or the user) proposed an action.
type Origin string

// Recognized origins.
const (
	OriginReview  Origin = "review"
	OriginMeta    Origin = "meta"
	OriginUser    Origin = "user"
	OriginTrigger Origin = "trigger_loop"
)

// ProposedAction is a reasoner's (or user's) request for the Executor to
// change system state.
type ProposedAction struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	Description  string     `json:"description"`
	ActionKind   ActionKind `json:"action_kind"`
	Commands     []string   `json:"commands"`
	Risk         Risk       `json:"risk"`
	Rationale    string     `json:"rationale"`
	RollbackPlan string     `json:"rollback_plan,omitempty"`
	Origin       Origin     `json:"origin"`
}

// QueuedStatus is the state-machine status of a QueuedAction (spec.md §3,
// §4.4, §8): pending → {approved → {executed, failed}} | rejected. Terminal
// states are never revisited.
type QueuedStatus string

// Recognized queued-action statuses.
const (
	QueuedPending  QueuedStatus = "pending"
	QueuedApproved QueuedStatus = "approved"
	QueuedRejected QueuedStatus = "rejected"
	QueuedExecuted QueuedStatus = "executed"
	QueuedFailed   QueuedStatus = "failed"
)

// Terminal reports whether s is a terminal state.
func (s QueuedStatus) Terminal() bool {
	switch s {
	case QueuedRejected, QueuedExecuted, QueuedFailed:
		return true
	default:
		return false
	}
}

// QueuedAction is a ProposedAction annotated with queue bookkeeping.
type QueuedAction struct {
	ProposedAction

	QueueID  int64        `json:"queue_id"`
	QueuedAt time.Time    `json:"queued_at"`
	Status   QueuedStatus `json:"status"`

	// ExecutedAt/Output/FailureReason are populated once the action
	// leaves the pending/approved states.
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	Output        string     `json:"output,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// ValidTransition reports whether moving from 'from' to 'to' is legal
// under the state machine in spec.md §4.4/§8.
func ValidTransition(from, to QueuedStatus) bool {
	switch from {
	case QueuedPending:
		return to == QueuedApproved || to == QueuedRejected
	case QueuedApproved:
		return to == QueuedExecuted || to == QueuedFailed
	default:
		return false
	}
}
