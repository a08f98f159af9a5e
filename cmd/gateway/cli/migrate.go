package cli

import (
	"fmt"

	"merchant-trust-gateway/config"
	pgStorage "merchant-trust-gateway/internal/adapter/storage/postgres"
	"merchant-trust-gateway/migrations"
	"merchant-trust-gateway/pkg/logger"

	"github.com/spf13/cobra"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StorageDriverPostgres {
				return fmt.Errorf("migrate needs storage.driver %q, got %q", config.StorageDriverPostgres, cfg.Storage.Driver)
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

			pool, err := pgStorage.NewPool(cmd.Context(), cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			applied, err := migrations.Apply(cmd.Context(), pool, log)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", v)
			}
			return nil
		},
	}
}
