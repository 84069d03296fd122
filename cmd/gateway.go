package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"showbot/pkg/channel/telegram"
	"showbot/pkg/config"
	"showbot/pkg/gateway"
	"showbot/pkg/logger"

	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the Telegram bot gateway",
	Long:  "Polls Telegram for updates, dispatches commands and booking submissions, and serves health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			os.Exit(1)
		}

		appLogger, err := logger.New(cfg.Logging, cfg.Telegram.Token)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.gateway")

		svc, err := newGatewayService(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			os.Exit(1)
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("Gateway started", "broadcast_chat_id", cfg.Relay.BroadcastChatID, "ring_log_capacity", cfg.RingLog.Capacity, "operators", len(cfg.Operators.AllowFrom))
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
			os.Exit(1)
		}
		log.Info("Gateway stopped")
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// newGatewayService validates cfg and wires the Telegram adapter into a
// gateway service. Missing settings are reported as config.ErrConfigMissing.
func newGatewayService(cfg *config.Config, log *slog.Logger) (*gateway.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adapter, err := telegram.NewAdapter(cfg.Telegram, log)
	if err != nil {
		return nil, fmt.Errorf("configure telegram channel: %w", err)
	}

	return gateway.NewService(cfg, adapter, log)
}
