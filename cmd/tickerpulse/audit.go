package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/scheduler"
)

func newAuditCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the language-model call log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(ro),
		newAuditShowCmd(ro),
		newAuditStatsCmd(ro),
		newAuditCleanupCmd(ro),
	)
	return cmd
}

func newAuditSearchCmd(ro *rootOptions) *cobra.Command {
	var (
		model   string
		outcome string
		since   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.auditLog()
			if err != nil {
				return err
			}

			opts := models.AuditQueryOpts{
				Model:   model,
				Outcome: outcome,
				Limit:   limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (ok, rate_limited, error, cached)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func newAuditShowCmd(ro *rootOptions) *cobra.Command {
	var requestID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single audit entry by request ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.auditLog()
			if err != nil {
				return err
			}
			entries, err := l.Query(context.Background(), models.AuditQueryOpts{
				RequestID: requestID,
				Limit:     1,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No entry found for that request ID.")
				return nil
			}

			a := entries[0]
			fmt.Printf("Request ID:    %s\n", a.RequestID)
			fmt.Printf("Model:         %s\n", a.Model)
			fmt.Printf("Outcome:       %s\n", a.Outcome)
			fmt.Printf("Batch size:    %d\n", a.BatchSize)
			fmt.Printf("Latency:       %dms\n", a.LatencyMs)
			fmt.Printf("Time:          %s\n", a.CreatedAt.Format(time.RFC3339))
			if a.ErrorMessage != "" {
				fmt.Printf("Error:         %s\n", a.ErrorMessage)
			}
			if a.PromptBody != "" {
				fmt.Printf("\n--- Prompt ---\n%s\n", a.PromptBody)
			}
			if a.ResponseBody != "" {
				fmt.Printf("\n--- Response ---\n%s\n", a.ResponseBody)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")
	return cmd
}

func newAuditStatsCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show call counts by model and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.auditLog()
			if err != nil {
				return err
			}
			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.auditLog()
			if err != nil {
				return err
			}
			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d audit entries.\n", deleted)
			return nil
		},
	}
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-32s %-12s %5s %8s %-19s\n",
		"REQUEST ID", "MODEL", "OUTCOME", "BATCH", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 118) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s %-32s %-12s %5d %6dms %-19s\n",
			e.RequestID, scheduler.ShortName(e.Model), e.Outcome, e.BatchSize,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-12s %8s %12s\n", "MODEL", "DAY", "CALLS", "RATE LIMITED")
	b.WriteString(strings.Repeat("-", 75) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-40s %-12s %8d %12d\n", s.Model, s.Day, s.Count, s.RateLimited)
	}
	return b.String()
}
