package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/codegen/pkg/config"
	"github.com/pario-ai/codegen/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve code generation as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []mcp.Option
			if a.tracker != nil {
				opts = append(opts, mcp.WithTracker(a.tracker))
			}
			if a.memo != nil {
				opts = append(opts, mcp.WithCache(a.memo))
			}
			if a.auditor != nil {
				opts = append(opts, mcp.WithHistory(a.auditor))
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return mcp.New(a.gen, version, opts...).Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	return cmd
}
