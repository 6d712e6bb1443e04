package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL schema migrations",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Database.Driver != store.DriverPostgres {
			return errors.New("migrate requires DB_DRIVER=postgres")
		}
		if err := store.MigrateDSN(cfg.Database.URL); err != nil {
			return err
		}
		slog.Info("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
