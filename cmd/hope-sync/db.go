package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/unicef/hope-sub007/pkg/platform/database"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations from the configured folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := connect(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		instance, ok := db.(*database.DatabaseInstance)
		if !ok {
			return errors.New("schema migrations need a direct database connection")
		}
		return database.NewMigrationService(logger, &database.MigrationConfig{
			MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
			Version:             uint(cfg.DatabaseMigrationVersion),
			Force:               cfg.DatabaseMigrationForce,
			AutoRollback:        cfg.DatabaseMigrationAutoRollback,
		}).MigratePostgres(instance.DB.DB, cfg.DatabaseName)
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
}
