package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/database"
)

func migrateCmd(cfgPath *string) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			if !status {
				if err := database.Migrate(pg.DB); err != nil {
					return err
				}
			}
			version, err := database.MigrationVersion(pg.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, describeDatabase(cfg.Database.Postgres))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "print the current schema version without migrating")
	return cmd
}

func describeDatabase(p config.PostgresConfig) string {
	return fmt.Sprintf("%s@%s:%d/%s", p.User, p.Host, p.Port, p.Database)
}
