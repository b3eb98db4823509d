package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/diticoms/service-desk/internal/application"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := application.NewAPI(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return api.Run(ctx)
}
