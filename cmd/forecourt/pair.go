package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avendano/forecourt/internal/config"
	"github.com/avendano/forecourt/internal/gateway/whatsapp"
	"github.com/avendano/forecourt/internal/observability"
)

func newPairCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Link a WhatsApp device via QR code",
		Long:  "Renders a QR code to scan with WhatsApp on your phone. The session persists in the configured store path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPair(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "forecourt.yaml", "path to config file")
	return cmd
}

func runPair(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := whatsapp.New(cfg.WhatsApp.StorePath, logger)
	defer adapter.Close()
	return adapter.Pair(ctx)
}
