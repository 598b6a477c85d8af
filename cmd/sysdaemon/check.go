package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one Trigger Loop pass and one Review Reasoner cycle, then print the assessment",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		o, err := buildOrchestrator(ctx)
		if err != nil {
			dieRuntime("sysdaemon check: %v", err)
		}
		defer o.Shutdown(context.Background())

		o.Loop().RunOnce(ctx)

		if err := o.Review().RunCycle(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "review cycle: %v\n", err)
		}

		entries := o.Window().Snapshot()
		if len(entries) == 0 {
			fmt.Println("no context entries to report")
			return
		}
		last := entries[len(entries)-1]
		fmt.Printf("[%s] %s\n", last.Kind, last.Text)
	},
}
