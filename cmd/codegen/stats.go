package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/codegen/pkg/config"
	"github.com/pario-ai/codegen/pkg/credential"
	"github.com/pario-ai/codegen/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath  string
		fingerprint string
		mine        bool
		sinceStr    string
		records     bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var since time.Time
			if sinceStr != "" {
				since, err = time.Parse("2006-01-02", sinceStr)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
			}

			if mine {
				key, _, err := credential.Default(cfg.Credential.SecretsPath).Resolve(cfg.Credential.Name)
				if err != nil {
					return err
				}
				fingerprint = credential.Fingerprint(key)
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()
			summaries, err := tr.Summary(ctx, fingerprint)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					s.Fingerprint, s.Model, s.RequestCount, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if fingerprint == "" {
				return nil
			}
			return printKeyUsage(ctx, cmd, tr, fingerprint, since, records)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "filter by key fingerprint")
	cmd.Flags().BoolVar(&mine, "mine", false, "filter by the fingerprint of the configured credential")
	cmd.Flags().StringVar(&sinceStr, "since", "", "start date (YYYY-MM-DD) for the key total and records")
	cmd.Flags().BoolVar(&records, "records", false, "list individual requests for the selected key")
	return cmd
}

// printKeyUsage prints the token total for one key since a date and,
// optionally, its individual usage records.
func printKeyUsage(ctx context.Context, cmd *cobra.Command, tr tracker.Tracker, fingerprint string, since time.Time, records bool) error {
	out := cmd.OutOrStdout()

	total, err := tr.TotalByKey(ctx, fingerprint, since)
	if err != nil {
		return err
	}
	label := "all time"
	if !since.IsZero() {
		label = "since " + since.Format("2006-01-02")
	}
	fmt.Fprintf(out, "\nTotal tokens for %s (%s): %d\n", fingerprint, label, total)

	if !records {
		return nil
	}
	recs, err := tr.QueryByKey(ctx, fingerprint, since)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODEL\tPROMPT\tCOMPLETION\tTOTAL")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Model, r.PromptTokens, r.CompletionTokens, r.TotalTokens)
	}
	return w.Flush()
}
