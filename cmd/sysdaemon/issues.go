package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/orchestrator"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Inspect and manage tracked Issues",
}

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked issues",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		issues, err := o.Semantic().QueryIssues(ctx, "", 100)
		if err != nil {
			dieRuntime("sysdaemon issues list: %v", err)
		}
		for _, iss := range issues {
			fmt.Printf("%s [%s/%s] %s (%s) %s\n", iss.ID, iss.Host, iss.Subject, iss.Title, iss.Severity, iss.Status)
		}
	},
}

var issuesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue's full detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		iss := findIssue(ctx, o, args[0])
		if iss == nil {
			dieRuntime("sysdaemon issues show: no issue with id %q", args[0])
		}
		fmt.Printf("ID:          %s\n", iss.ID)
		fmt.Printf("Host:        %s\n", iss.Host)
		fmt.Printf("Subject:     %s\n", iss.Subject)
		fmt.Printf("Title:       %s\n", iss.Title)
		fmt.Printf("Description: %s\n", iss.Description)
		fmt.Printf("Severity:    %s\n", iss.Severity)
		fmt.Printf("Status:      %s\n", iss.Status)
		fmt.Printf("Created:     %s\n", iss.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:     %s\n", iss.UpdatedAt.Format(time.RFC3339))
		if iss.Resolution != "" {
			fmt.Printf("Resolution:  %s\n", iss.Resolution)
		}
		for _, inv := range iss.Investigations {
			fmt.Printf("  - [%s] %s: %s\n", inv.Timestamp.Format(time.RFC3339), inv.Author, inv.Summary)
		}
	},
}

var issuesCreateCmd = &cobra.Command{
	Use:   "create <host> <subject> <description>",
	Short: "Manually create an Issue outside the normal trigger path",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		now := time.Now()
		iss := domain.Issue{
			ID:          uuid.NewString(),
			Host:        args[0],
			Subject:     args[1],
			Title:       args[1],
			Description: args[2],
			Severity:    domain.SeverityWarning,
			Status:      domain.IssueOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := o.Semantic().UpsertIssue(ctx, iss); err != nil {
			dieRuntime("sysdaemon issues create: %v", err)
		}
		fmt.Println(iss.ID)
	},
}

var issuesResolveCmd = &cobra.Command{
	Use:   "resolve <host> <subject> [reason]",
	Short: "Resolve the most recent issue for a host/subject, starting its reopen cooldown",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		reason := ""
		if len(args) > 2 {
			reason = args[2]
		}
		if err := o.Tracker().Resolve(ctx, args[0], args[1], reason); err != nil {
			dieRuntime("sysdaemon issues resolve: %v", err)
		}
		fmt.Println("resolved")
	},
}

var issuesCloseCmd = &cobra.Command{
	Use:   "close <host> <subject> [reason]",
	Short: "Close the most recent issue for a host/subject; it will never reopen",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		o := mustOrchestrator(ctx)
		defer o.Shutdown(context.Background())

		reason := ""
		if len(args) > 2 {
			reason = args[2]
		}
		if err := o.Tracker().Close(ctx, args[0], args[1], reason); err != nil {
			dieRuntime("sysdaemon issues close: %v", err)
		}
		fmt.Println("closed")
	},
}

func init() {
	issuesCmd.AddCommand(issuesListCmd, issuesShowCmd, issuesCreateCmd, issuesResolveCmd, issuesCloseCmd)
}

func findIssue(ctx context.Context, o *orchestrator.Orchestrator, id string) *domain.Issue {
	issues, err := o.Semantic().QueryIssues(ctx, "", 1000)
	if err != nil {
		return nil
	}
	for i := range issues {
		if issues[i].ID == id {
			return &issues[i]
		}
	}
	return nil
}
