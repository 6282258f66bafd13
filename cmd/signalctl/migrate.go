package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(ctx context.Context, _ *config.Config, app *bootstrap.App) error {
				if err := app.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}
