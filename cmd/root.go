package cmd

import (
	"context"
	"fmt"

	"github.com/diticoms/service-desk/internal/application"
	"github.com/diticoms/service-desk/internal/config"
	"github.com/diticoms/service-desk/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "diticoms-service",
	Short:        "Diticoms service desk: repair tickets on top of the Google Sheets backend",
	RunE:         runServe,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.NewForEnvironment(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

// openDesk wires the service layer for one-shot CLI commands. The caller
// closes the returned desk.
func openDesk(ctx context.Context) (*application.Desk, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return application.NewDesk(ctx, cfg, log)
}
