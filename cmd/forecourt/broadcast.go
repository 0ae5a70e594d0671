package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avendano/forecourt/internal/config"
	forecourtdb "github.com/avendano/forecourt/internal/db"
	"github.com/avendano/forecourt/internal/gateway"
	"github.com/avendano/forecourt/internal/gateway/whatsapp"
	"github.com/avendano/forecourt/internal/llm"
	"github.com/avendano/forecourt/internal/observability"
	"github.com/avendano/forecourt/internal/store"
)

func newBroadcastCmd() *cobra.Command {
	var (
		configPath string
		jids       []string
		tags       []string
		groups     bool
	)

	cmd := &cobra.Command{
		Use:   "broadcast <message>",
		Short: "Send a message to many contacts at once",
		Long:  "Sends the message to the given JIDs, or to every whitelisted contact matching the tag and group filters when no JIDs are given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBroadcast(cmd, configPath, jids, tags, groups, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "forecourt.yaml", "path to config file")
	cmd.Flags().StringSliceVar(&jids, "jid", nil, "explicit recipient JIDs (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "filter whitelisted recipients by tag (repeatable)")
	cmd.Flags().BoolVar(&groups, "groups", false, "include only group chats")
	return cmd
}

// noopHandler satisfies the gateway's pipeline interface for one-shot
// sending; the broadcast command never processes inbound messages.
type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, jid, text string) string { return "" }
func (noopHandler) HandleLocation(ctx context.Context, jid string, loc llm.Location) string {
	return ""
}

func runBroadcast(cmd *cobra.Command, configPath string, jids, tags []string, groups bool, message string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gormDB, err := forecourtdb.Connect(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	contacts := store.NewContactStore(gormDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := whatsapp.New(cfg.WhatsApp.StorePath, logger)
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	daemon, err := gateway.NewDaemon(gateway.DaemonOpts{
		Adapter:  adapter,
		Handler:  noopHandler{},
		Contacts: contacts,
		Config:   cfg,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var results []gateway.BroadcastResult
	if len(jids) > 0 {
		results = daemon.Broadcast(ctx, jids, message)
	} else {
		filter := store.BroadcastFilter{Tags: tags}
		if groups {
			filter.IsGroup = &groups
		}
		results, err = daemon.BroadcastFiltered(ctx, filter, message)
		if err != nil {
			return err
		}
	}

	sent := 0
	var failed []string
	for _, r := range results {
		if r.Success {
			sent++
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.JID, r.Error))
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Broadcast sent to %d/%d recipients\n", sent, len(results))
	if len(failed) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Failed: %s\n", strings.Join(failed, ", "))
	}
	return nil
}
