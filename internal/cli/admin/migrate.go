package admin

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragbot/internal/database"
)

var errDatabaseURLRequired = errors.New("RAGBOT_DATABASE_URL is required to migrate")

// MigrateCmd applies the pgvector schema migrations.
func MigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending migrations for the pgvector backend. Requires RAGBOT_DATABASE_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if cfg.DatabaseURL == "" {
				return errDatabaseURLRequired
			}
			return database.Migrate(cfg.DatabaseURL, dir, log)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", migrationsDir, "Directory containing migration files")

	return cmd
}
