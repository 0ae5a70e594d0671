package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/cache"
	"github.com/avendano/forecourt/internal/config"
	"github.com/avendano/forecourt/internal/llm"
	"github.com/avendano/forecourt/internal/store"
)

// Handler is the conversation pipeline the gateway forwards into.
// Satisfied by orchestrator.Orchestrator.
type Handler interface {
	Handle(ctx context.Context, jid, text string) string
	HandleLocation(ctx context.Context, jid string, loc llm.Location) string
}

// Daemon pumps inbound platform messages through the allow-list and group
// filters into the conversation pipeline, and delivers the replies.
type Daemon struct {
	adapter  Adapter
	handler  Handler
	contacts *store.ContactStore
	tickets  *store.TicketStore
	cache    *cache.Cache
	cfg      *config.Config
	log      *zap.Logger

	selfJID string
	wg      sync.WaitGroup
}

// DaemonOpts holds parameters for creating a Daemon. Cache is optional.
type DaemonOpts struct {
	Adapter  Adapter
	Handler  Handler
	Contacts *store.ContactStore
	Tickets  *store.TicketStore
	Cache    *cache.Cache
	Config   *config.Config
	Logger   *zap.Logger
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("gateway: adapter is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("gateway: handler is required")
	}
	if opts.Contacts == nil {
		return nil, fmt.Errorf("gateway: contact store is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("gateway: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{
		adapter:  opts.Adapter,
		handler:  opts.Handler,
		contacts: opts.Contacts,
		tickets:  opts.Tickets,
		cache:    opts.Cache,
		cfg:      opts.Config,
		log:      logger.Named("gateway"),
	}, nil
}

// Run connects the adapter and pumps inbound messages until the context is
// cancelled. Each message is processed on its own goroutine; ordering per
// counterparty is enforced downstream by the pipeline's per-JID lock.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("gateway: connect: %w", err)
	}

	if sid, ok := d.adapter.(SelfIDer); ok {
		d.selfJID = sid.SelfJID()
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("gateway: listen: %w", err)
	}

	if d.cfg.Digest.Enabled {
		go d.runDigestScheduler(ctx)
	}

	d.log.Info("gateway online", zap.String("self", d.selfJID))

	for {
		select {
		case <-ctx.Done():
			d.log.Info("gateway shutting down")
			d.wg.Wait()
			if err := d.adapter.Close(); err != nil {
				d.log.Warn("close adapter", zap.Error(err))
			}
			return nil

		case msg, ok := <-inbound:
			if !ok {
				d.log.Info("inbound channel closed")
				d.wg.Wait()
				return nil
			}
			d.wg.Add(1)
			go func(msg InboundMessage) {
				defer d.wg.Done()
				d.process(ctx, msg)
			}(msg)
		}
	}
}

// process runs one inbound message through the filters and the pipeline.
func (d *Daemon) process(ctx context.Context, msg InboundMessage) {
	if !ShouldProcess(msg, d.selfJID) {
		return
	}
	if msg.Text == "" && msg.Location == nil {
		return
	}

	if _, err := d.contacts.UpsertInbound(msg.JID, msg.PushName, msg.IsGroup); err != nil {
		d.log.Warn("contact upsert failed", zap.String("jid", msg.JID), zap.Error(err))
	}

	allowed, err := d.whitelisted(ctx, msg.JID)
	if err != nil {
		d.log.Error("whitelist lookup failed", zap.String("jid", msg.JID), zap.Error(err))
		return
	}
	if !allowed {
		d.log.Debug("dropping message from non-whitelisted jid", zap.String("jid", msg.JID))
		return
	}

	var reply string
	if msg.Location != nil {
		reply = d.handler.HandleLocation(ctx, msg.JID, *msg.Location)
	} else {
		reply = d.handler.Handle(ctx, msg.JID, msg.Text)
	}
	if reply == "" {
		return
	}

	if err := d.Deliver(ctx, msg.JID, reply); err != nil {
		d.log.Error("delivery failed", zap.String("jid", msg.JID), zap.Error(err))
	}
}

// whitelisted answers the allow-list gate, consulting the cache before the
// database.
func (d *Daemon) whitelisted(ctx context.Context, jid string) (bool, error) {
	if ok, hit := d.cache.GetWhitelisted(ctx, jid); hit {
		return ok, nil
	}
	ok, err := d.contacts.IsWhitelisted(jid)
	if err != nil {
		return false, err
	}
	d.cache.SetWhitelisted(ctx, jid, ok)
	return ok, nil
}

// Deliver sends text to jid. Failures are reported, not retried.
func (d *Daemon) Deliver(ctx context.Context, jid, text string) error {
	if err := d.adapter.Send(ctx, OutboundMessage{JID: jid, Text: text}); err != nil {
		return fmt.Errorf("gateway: send to %s: %w", jid, err)
	}
	return nil
}
