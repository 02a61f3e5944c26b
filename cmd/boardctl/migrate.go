package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LucasSckenal/nexo-sub000/internal/app"
	"github.com/LucasSckenal/nexo-sub000/internal/config"
	"github.com/LucasSckenal/nexo-sub000/internal/docstore/sqlitestore"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply document store migrations for STORE_DRIVER",
		Long: `Apply the embedded goose migrations.

postgres uses PG_DSN, sqlite uses SQLITE_PATH. The memory driver has nothing
to migrate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			switch cfg.Store.Driver {
			case config.DriverPostgres:
				if err := app.MigratePostgres(cfg.PG.DSN); err != nil {
					return err
				}
			case config.DriverSQLite:
				st, err := sqlitestore.Open(cfg.SQLite.Path)
				if err != nil {
					return err
				}
				if err := st.Close(); err != nil {
					return err
				}
			default:
				fmt.Println(dim("nothing to migrate for driver " + cfg.Store.Driver))
				return nil
			}
			fmt.Printf("%s migrations applied (%s)\n", green("✓"), cfg.Store.Driver)
			return nil
		},
	}
}
