package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshPublish bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload tickets, technicians and the price list from the sheet",
	Long: "Reload tickets, technicians and the price list from the sheet into the local cache.\n" +
		"With --publish every cached ticket is also sent to Kafka as a ticket.synced event,\n" +
		"which lets downstream consumers rebuild their state.",
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshPublish, "publish", false, "emit ticket.synced events for every ticket")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	desk, err := openDesk(cmd.Context())
	if err != nil {
		return err
	}
	defer desk.Close()

	if _, err := desk.Service.CurrentUser(cmd.Context()); err != nil {
		return fmt.Errorf("refresh: %w (run login first)", err)
	}
	snap, err := desk.Service.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "refresh: %d tickets, %d technicians, %d price items\n",
		len(snap.Tickets), len(snap.Technicians), len(snap.PriceList))

	if !refreshPublish {
		return nil
	}
	if !desk.Events.Enabled() {
		desk.Log.Warn("refresh: --publish needs KAFKA_BROKERS and KAFKA_TOPIC_TICKET")
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	n := desk.Service.PublishSnapshot(ctx, snap.Tickets)
	desk.Log.Info("refresh: published snapshot", zap.Int("events", n))
	fmt.Fprintf(out, "refresh: sent %d events to Kafka\n", n)
	return nil
}
