package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pario-ai/codegen/pkg/config"
)

func newGenerateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate code for one prompt and print it",
		Long:  "Generate code for one prompt and print it. The prompt is read from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read prompt: %w", err)
				}
				prompt = string(b)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.gen.Generate(context.Background(), prompt, uuid.NewString())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Display())
			if res.Err != nil {
				return res.Err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	return cmd
}
