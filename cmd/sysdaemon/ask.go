package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the Meta Reasoner a one-shot question and print its reply",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")
		ctx := context.Background()

		o, err := buildOrchestrator(ctx)
		if err != nil {
			dieRuntime("sysdaemon ask: %v", err)
		}
		defer o.Shutdown(context.Background())

		sess, err := o.Meta().StartChat(ctx, question)
		if err != nil {
			dieRuntime("sysdaemon ask: %v", err)
		}

		clone := sess.Clone()
		if len(clone.Messages) == 0 {
			dieRuntime("sysdaemon ask: no reply received")
		}
		fmt.Println(clone.Messages[len(clone.Messages)-1].Content)
	},
}
