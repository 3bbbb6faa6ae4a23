package main

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
	"filerecon/internal/store"
)

func newMigrateCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect the bundled SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.Driver != store.DriverSQLite {
				return fmt.Errorf("migrations only manage the bundled sqlite schema; %s tables belong to the clinic application", cfg.Database.Driver)
			}

			if inspect || dryRun {
				db, err := openRawDB(cfg.Database.Path)
				if err != nil {
					return err
				}
				defer db.Close()

				plan, err := store.MigrationPlan(db)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if out.structured() {
					return writeStructured(plan)
				}
				return writeMigrationPlan(plan)
			}

			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			if out.structured() {
				db, err := openRawDB(cfg.Database.Path)
				if err != nil {
					return err
				}
				defer db.Close()

				plan, err := store.MigrationPlan(db)
				if err != nil {
					return err
				}
				return writeStructured(plan)
			}
			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")
	return cmd
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	_ = writePlain("Current version: %d\n", plan.CurrentVersion)
	_ = writePlain("Available version: %d\n", plan.AvailableVersion)
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
	for _, m := range plan.Pending {
		_ = writePlain("  %d: %s\n", m.Version, m.Description)
	}
	return nil
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
