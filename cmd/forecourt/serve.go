package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/avendano/forecourt/internal/admin"
	"github.com/avendano/forecourt/internal/cache"
	"github.com/avendano/forecourt/internal/config"
	"github.com/avendano/forecourt/internal/db"
	"github.com/avendano/forecourt/internal/gateway"
	"github.com/avendano/forecourt/internal/gateway/whatsapp"
	"github.com/avendano/forecourt/internal/llm"
	"github.com/avendano/forecourt/internal/observability"
	"github.com/avendano/forecourt/internal/orchestrator"
	"github.com/avendano/forecourt/internal/retrieval"
	"github.com/avendano/forecourt/internal/store"
	"github.com/avendano/forecourt/internal/tickets"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot daemon and operator API",
		Long:  "Connects to WhatsApp, answers customer messages, and serves the operator REST API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "forecourt.yaml", "path to config file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gormDB, err := db.Connect(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.NormalizeWhitelist(gormDB); err != nil {
		return err
	}
	if err := db.SeedCorpus(gormDB); err != nil {
		return err
	}

	corpus, err := retrieval.LoadCorpus(gormDB)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	contacts := store.NewContactStore(gormDB)
	convs := store.NewConversationStore(gormDB)
	ticketSt := store.NewTicketStore(gormDB)

	redisCache := cache.New(cfg.Redis, logger)
	defer redisCache.Close()

	generator := llm.NewGenerator(llm.NewClient(cfg.LLM, logger), logger)
	orch := orchestrator.New(convs, ticketSt, corpus, generator, cfg.Bot.HistoryLimit, logger)

	adapter := whatsapp.New(cfg.WhatsApp.StorePath, logger)
	daemon, err := gateway.NewDaemon(gateway.DaemonOpts{
		Adapter:  adapter,
		Handler:  orch,
		Contacts: contacts,
		Tickets:  ticketSt,
		Cache:    redisCache,
		Config:   cfg,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ticketSvc := tickets.NewService(ticketSt, convs, daemon, logger)

	api, err := admin.NewServer(admin.ServerOpts{
		Config:        cfg,
		DB:            gormDB,
		Contacts:      contacts,
		Conversations: convs,
		Tickets:       ticketSt,
		TicketService: ticketSvc,
		Corpus:        corpus,
		Messenger:     daemon,
		Cache:         redisCache,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return daemon.Run(ctx) })
	g.Go(func() error { return api.Start(ctx) })

	return g.Wait()
}
