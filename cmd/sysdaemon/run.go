package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon and run continuously until signalled",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		o, err := buildOrchestrator(ctx)
		if err != nil {
			dieRuntime("sysdaemon run: %v", err)
		}

		fmt.Fprintln(os.Stdout, "sysdaemon running, send SIGINT/SIGTERM to stop")
		if err := o.Run(ctx); err != nil {
			dieRuntime("sysdaemon run: %v", err)
		}
		os.Exit(exitSuccess)
	},
}
