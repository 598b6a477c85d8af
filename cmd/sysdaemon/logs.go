package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/sysdaemon/pkg/auditlog"
)

var logsTailN int

var logsCmd = &cobra.Command{
	Use:   "logs <stream>",
	Short: "Print entries from the decisions or actions log (spec.md §6)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		o, err := buildOrchestrator(ctx)
		if err != nil {
			dieRuntime("sysdaemon logs: %v", err)
		}
		defer o.Shutdown(context.Background())

		switch args[0] {
		case "decisions":
			printDecisionsLog(o.QueueDir())
		case "actions":
			printActionsLog(o.QueueDir())
		default:
			dieUsage("unknown log stream %q: must be one of decisions, actions", args[0])
		}
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsTailN, "tail", 0, "Print only the last N entries (0 = all)")
}

func printDecisionsLog(queueDir string) {
	decisions, err := auditlog.Tail(filepath.Join(queueDir, "decisions.jsonl"), logsTailN)
	if err != nil {
		dieRuntime("sysdaemon logs decisions: %v", err)
	}
	for _, d := range decisions {
		fmt.Printf("%s #%d %s %s\n", d.Timestamp.Format("2006-01-02T15:04:05Z07:00"), d.QueueID, d.Action, d.Reason)
	}
}

// printActionsLog streams the approval queue's own journal.jsonl raw,
// since every line is already a self-describing QueuedAction transition
// (spec.md §6's Actions log).
func printActionsLog(queueDir string) {
	f, err := os.Open(filepath.Join(queueDir, "journal.jsonl"))
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		dieRuntime("sysdaemon logs actions: %v", err)
	}
	defer f.Close()

	lines := tailLines(f, logsTailN)
	for _, line := range lines {
		fmt.Println(line)
	}
}

func tailLines(f *os.File, n int) []string {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
