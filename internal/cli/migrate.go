package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withDatabase(func(cmd *cobra.Command, db *sql.DB) error {
		return postgres.Migrate(cmd.Context(), db, commandLogger(cmd))
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every migration",
	RunE: withDatabase(func(cmd *cobra.Command, db *sql.DB) error {
		return postgres.MigrationStatus(cmd.Context(), db, commandLogger(cmd))
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: withDatabase(func(cmd *cobra.Command, db *sql.DB) error {
		return postgres.RollbackLast(cmd.Context(), db, commandLogger(cmd))
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd, migrateDownCmd)
}

// withDatabase opens the configured database for the duration of fn.
func withDatabase(fn func(cmd *cobra.Command, db *sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadSections("database")
		if err != nil {
			return err
		}

		db, err := postgres.Open(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := fn(cmd, db); err != nil {
			return fmt.Errorf("migrate %s: %w", cmd.Name(), err)
		}
		return nil
	}
}
