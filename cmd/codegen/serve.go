package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pario-ai/codegen/pkg/config"
	"github.com/pario-ai/codegen/pkg/highlight"
	"github.com/pario-ai/codegen/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the code generator web server",
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

			var stats server.StatsSource
			if a.memo != nil {
				stats = a.memo
			}
			srv := server.New(cfg, a.gen, highlight.New(cfg.Highlight), stats)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("config", configPath).
				Bool("cache", cfg.Cache.Enabled).
				Str("backend", cfg.Cache.Backend).
				Bool("history", cfg.Audit.Enabled).
				Msg("starting codegen")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	return cmd
}
