package cmd

import (
	"fmt"

	"github.com/diticoms/service-desk/internal/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run local store migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.StoreDriver == "redis" {
		log.Info("migrate up: redis store has no schema")
		return nil
	}
	if cfg.StoreDriver == database.DriverPostgres {
		if err := database.EnsurePostgres(cfg.DatabaseURL(), log); err != nil {
			return err
		}
	}
	db, err := database.Open(cfg.StoreDriver, cfg.DSN(), log, cfg.LogLevel)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.MigrateUp(cmd.Context(), db, cfg.StoreDriver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	version, err := database.Version(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrate up: ok", zap.String("driver", cfg.StoreDriver), zap.Int64("version", version))
	return nil
}
