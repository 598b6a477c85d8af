package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/sysdaemon/pkg/auditlog"
	"github.com/codeready-toolchain/sysdaemon/pkg/orchestrator"
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Inspect and act on the approval queue",
}

var approveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every queued action",
	Run: func(cmd *cobra.Command, args []string) {
		o := mustOrchestrator(cmd.Context())
		defer o.Shutdown(context.Background())

		for _, a := range o.Queue().List() {
			fmt.Printf("#%d [%s] %s — %s\n", a.QueueID, a.Status, a.Subject, a.Description)
		}
	},
}

var approveApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a queued action, executing it immediately",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := parseQueueIDArg(args[0])

		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		action, err := o.Queue().Approve(ctx, id)
		if err != nil {
			dieRuntime("sysdaemon approve: %v", err)
		}
		recordDecision(o, id, "approve", "")
		fmt.Printf("#%d -> %s\n", action.QueueID, action.Status)
	},
}

var approveRejectCmd = &cobra.Command{
	Use:   "reject <id> [reason]",
	Short: "Reject a queued action",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseQueueIDArg(args[0])
		reason := ""
		if len(args) > 1 {
			reason = args[1]
		}

		o := mustOrchestrator(cmd.Context())
		defer o.Shutdown(context.Background())

		action, err := o.Queue().Reject(id, reason)
		if err != nil {
			dieRuntime("sysdaemon reject: %v", err)
		}
		recordDecision(o, id, "reject", reason)
		fmt.Printf("#%d -> %s\n", action.QueueID, action.Status)
	},
}

var approveDiscussCmd = &cobra.Command{
	Use:   "discuss <id>",
	Short: "Send a queued action to the Meta Reasoner for discussion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := parseQueueIDArg(args[0])

		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		action, err := o.Queue().Get(id)
		if err != nil {
			dieRuntime("sysdaemon discuss: %v", err)
		}
		recordDecision(o, id, "discuss", "")

		sess, err := o.Meta().StartChat(ctx, fmt.Sprintf(
			"An operator wants to discuss queued action #%d (%s): %s. Commands: %v. Risk: %s. Rationale: %s",
			action.QueueID, action.Subject, action.Description, action.Commands, action.Risk, action.Rationale))
		if err != nil {
			dieRuntime("sysdaemon discuss: %v", err)
		}
		clone := sess.Clone()
		if len(clone.Messages) > 0 {
			fmt.Println(clone.Messages[len(clone.Messages)-1].Content)
		}
	},
}

func init() {
	approveCmd.AddCommand(approveListCmd, approveApproveCmd, approveRejectCmd, approveDiscussCmd)
}

func parseQueueIDArg(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		dieUsage("invalid queue id %q: %v", raw, err)
	}
	return id
}

func mustOrchestrator(ctx context.Context) *orchestrator.Orchestrator {
	if ctx == nil {
		ctx = context.Background()
	}
	o, err := buildOrchestrator(ctx)
	if err != nil {
		dieRuntime("sysdaemon: %v", err)
	}
	return o
}

// recordDecision appends to the Decisions log (spec.md §6), additive to
// the approval queue's own action-outcome journal. Best-effort: a
// logging failure here must not block the operator's decision from
// taking effect.
func recordDecision(o *orchestrator.Orchestrator, id int64, action, reason string) {
	log, err := auditlog.Open(filepath.Join(o.QueueDir(), "decisions.jsonl"))
	if err != nil {
		fmt.Printf("warning: decisions log unavailable: %v\n", err)
		return
	}
	defer log.Close()

	if err := log.Record(auditlog.Decision{
		Timestamp: time.Now(),
		QueueID:   id,
		Action:    action,
		Reason:    reason,
	}); err != nil {
		fmt.Printf("warning: decision not recorded: %v\n", err)
	}
}
