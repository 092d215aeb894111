package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/codegen/pkg/audit"
	"github.com/pario-ai/codegen/pkg/config"
	"github.com/pario-ai/codegen/pkg/models"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query and manage the generation history",
	}

	cmd.AddCommand(
		newHistorySearchCmd(),
		newHistoryShowCmd(),
		newHistoryStatsCmd(),
		newHistoryCleanupCmd(),
	)
	return cmd
}

func newHistorySearchCmd() *cobra.Command {
	var (
		configPath  string
		model       string
		since       string
		contains    string
		fingerprint string
		errorsOnly  bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openHistory(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Model:       model,
				Contains:    contains,
				Fingerprint: fingerprint,
				ErrorsOnly:  errorsOnly,
				Limit:       limit,
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
			fmt.Fprint(cmd.OutOrStdout(), formatHistoryEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&contains, "contains", "", "filter by prompt substring")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "filter by key fingerprint")
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "only show failed generations")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var (
		configPath string
		requestID  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single history entry by request ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}

			l, cleanup, err := openHistory(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := l.Query(context.Background(), models.AuditQueryOpts{
				RequestID: requestID,
				Limit:     1,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entry found for that request ID.")
				return nil
			}
			printHistoryEntry(out, entries[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")

	return cmd
}

func newHistoryStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show history statistics by model and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openHistory(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatHistoryStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	return cmd
}

func newHistoryCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete history entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openHistory(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d history entries.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	return cmd
}

func openHistory(configPath string) (*audit.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open history db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func printHistoryEntry(w io.Writer, e models.AuditEntry) {
	fmt.Fprintf(w, "Request ID:    %s\n", e.RequestID)
	fmt.Fprintf(w, "Model:         %s\n", e.Model)
	fmt.Fprintf(w, "Key:           %s\n", e.Fingerprint)
	fmt.Fprintf(w, "Cached:        %t\n", e.Cached)
	if e.ErrorKind != "" {
		fmt.Fprintf(w, "Error:         %s\n", e.ErrorKind)
	}
	fmt.Fprintf(w, "Latency:       %dms\n", e.LatencyMs)
	fmt.Fprintf(w, "Tokens:        %d\n", e.TotalTokens)
	fmt.Fprintf(w, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
	if e.Prompt != "" {
		fmt.Fprintf(w, "\n--- Prompt ---\n%s\n", e.Prompt)
	}
	if e.Response != "" {
		fmt.Fprintf(w, "\n--- Response ---\n%s\n", e.Response)
	}
}

func formatHistoryEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No history entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-10s %6s %8s %8s %-20s\n",
		"REQUEST ID", "MODEL", "RESULT", "CACHED", "LATENCY", "TOKENS", "TIME")
	b.WriteString(strings.Repeat("-", 116) + "\n")
	for _, e := range entries {
		result := "ok"
		if e.ErrorKind != "" {
			result = e.ErrorKind
		}
		fmt.Fprintf(&b, "%-38s %-20s %-10s %6t %6dms %8d %-20s\n",
			e.RequestID, e.Model, result, e.Cached,
			e.LatencyMs, e.TotalTokens,
			e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatHistoryStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No history stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %-12s %8s %8s %8s\n", "MODEL", "DAY", "COUNT", "CACHED", "ERRORS")
	b.WriteString(strings.Repeat("-", 66) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-25s %-12s %8d %8d %8d\n", s.Model, s.Day, s.Count, s.Cached, s.Errors)
	}
	return b.String()
}
