package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var validNotifyPriorities = map[string]bool{"low": true, "medium": true, "high": true}

var notifyCmd = &cobra.Command{
	Use:   "notify <title> <body> [priority]",
	Short: "Send an operator notification through the configured Slack and dashboard channels",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		priority := "medium"
		if len(args) == 3 {
			priority = args[2]
		}
		if !validNotifyPriorities[priority] {
			dieUsage("invalid priority %q: must be one of low, medium, high", priority)
		}

		ctx := context.Background()
		o, err := buildOrchestrator(ctx)
		if err != nil {
			dieRuntime("sysdaemon notify: %v", err)
		}
		defer o.Shutdown(context.Background())

		o.Notify().Notify(ctx, args[0], args[1], priority)
		fmt.Println("notification sent")
	},
}
