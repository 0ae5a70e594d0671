// Package whatsapp implements the gateway Adapter for WhatsApp over the
// multi-device protocol via whatsmeow.
package whatsapp

import (
	"context"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"golang.org/x/term"
	"google.golang.org/protobuf/proto"

	"github.com/avendano/forecourt/internal/gateway"
	"github.com/avendano/forecourt/internal/llm"
)

// inboundBuffer bounds how many unprocessed platform events queue before
// the event handler blocks.
const inboundBuffer = 100

// Adapter implements gateway.Adapter for WhatsApp.
type Adapter struct {
	storePath string
	log       *zap.Logger

	mu        sync.Mutex
	container *sqlstore.Container
	cli       *whatsmeow.Client
	inbound   chan gateway.InboundMessage
	done      chan struct{}
	removeID  uint32
	connected bool
	closed    bool
}

// New creates a WhatsApp Adapter persisting session state under storePath.
func New(storePath string, logger *zap.Logger) *Adapter {
	return &Adapter{
		storePath: storePath,
		log:       logger.Named("whatsapp"),
		inbound:   make(chan gateway.InboundMessage, inboundBuffer),
		done:      make(chan struct{}),
	}
}

// Connect opens the session store, restores the device, and dials WhatsApp.
// The device must already be paired; see Pair.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("whatsapp: adapter closed")
	}

	cli, err := a.buildClient(ctx)
	if err != nil {
		return err
	}
	if cli.Store.ID == nil {
		return fmt.Errorf("whatsapp: device not paired, run the pair command first")
	}

	a.removeID = cli.AddEventHandler(a.handleEvent)
	if err := cli.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connect: %w", err)
	}
	a.cli = cli
	a.connected = true
	a.log.Info("connected", zap.String("jid", cli.Store.ID.String()))
	return nil
}

// buildClient opens the sqlstore container and constructs the client for
// the first stored device.
func (a *Adapter) buildClient(ctx context.Context) (*whatsmeow.Client, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", a.storePath)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: open session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: load device: %w", err)
	}
	a.container = container
	return whatsmeow.NewClient(device, waLog.Noop), nil
}

// Pair runs the QR pairing flow, rendering codes to stdout until the phone
// links or ctx is cancelled.
func (a *Adapter) Pair(ctx context.Context) error {
	a.mu.Lock()
	cli, err := a.buildClient(ctx)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if cli.Store.ID != nil {
		a.log.Info("device already paired", zap.String("jid", cli.Store.ID.String()))
		return nil
	}

	qrChan, err := cli.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp: qr channel: %w", err)
	}
	if err := cli.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connect for pairing: %w", err)
	}
	defer cli.Disconnect()

	for item := range qrChan {
		switch item.Event {
		case "code":
			if term.IsTerminal(int(os.Stdout.Fd())) {
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			}
			fmt.Println("Scan the QR code with WhatsApp on your phone.")
			fmt.Println("Code:", item.Code)
		case "success":
			a.log.Info("pairing complete")
			return nil
		default:
			a.log.Debug("pairing event", zap.String("event", item.Event))
		}
	}
	return fmt.Errorf("whatsapp: pairing did not complete")
}

// Listen returns the inbound message channel. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan gateway.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("whatsapp: not connected")
	}
	return a.inbound, nil
}

// Send delivers a text message.
func (a *Adapter) Send(ctx context.Context, msg gateway.OutboundMessage) error {
	a.mu.Lock()
	cli := a.cli
	a.mu.Unlock()
	if cli == nil {
		return fmt.Errorf("whatsapp: not connected")
	}

	to, err := types.ParseJID(msg.JID)
	if err != nil {
		return fmt.Errorf("whatsapp: parse jid %q: %w", msg.JID, err)
	}
	_, err = cli.SendMessage(ctx, to, &waProto.Message{
		Conversation: proto.String(msg.Text),
	})
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	return nil
}

// SelfJID returns the bot's own JID (implements gateway.SelfIDer).
func (a *Adapter) SelfJID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cli == nil || a.cli.Store.ID == nil {
		return ""
	}
	return a.cli.Store.ID.String()
}

// Close disconnects and signals shutdown to in-flight event handlers. The
// inbound channel is never closed: the platform dispatches events on its own
// goroutines and may still be delivering one when Close returns.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	close(a.done)
	if a.cli != nil {
		a.cli.RemoveEventHandler(a.removeID)
		a.cli.Disconnect()
	}
	if a.container != nil {
		_ = a.container.Close()
	}
	return nil
}

// handleEvent maps raw whatsmeow events onto the inbound channel.
func (a *Adapter) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		msg, ok := mapMessage(e)
		if !ok {
			return
		}
		select {
		case a.inbound <- msg:
		case <-a.done:
		}
	case *events.LoggedOut:
		a.log.Warn("logged out by server, re-pairing required")
	case *events.Disconnected:
		a.log.Warn("disconnected, client will reconnect")
	}
}

// mapMessage reduces a platform message event to the gateway shape. Events
// carrying neither text nor a location are dropped.
func mapMessage(e *events.Message) (gateway.InboundMessage, bool) {
	msg := gateway.InboundMessage{
		JID:       e.Info.Chat.String(),
		SenderJID: e.Info.Sender.String(),
		PushName:  e.Info.PushName,
		IsGroup:   e.Info.IsGroup,
		FromMe:    e.Info.IsFromMe,
		Timestamp: e.Info.Timestamp,
	}

	switch {
	case e.Message.GetConversation() != "":
		msg.Text = e.Message.GetConversation()

	case e.Message.GetExtendedTextMessage().GetText() != "":
		ext := e.Message.GetExtendedTextMessage()
		msg.Text = ext.GetText()
		if ci := ext.GetContextInfo(); ci != nil {
			msg.MentionedJIDs = ci.GetMentionedJID()
			msg.QuotedSender = ci.GetParticipant()
		}

	case e.Message.GetLocationMessage() != nil:
		loc := e.Message.GetLocationMessage()
		msg.Location = &llm.Location{
			Latitude:  loc.GetDegreesLatitude(),
			Longitude: loc.GetDegreesLongitude(),
			Name:      loc.GetName(),
			Address:   loc.GetAddress(),
		}

	default:
		return gateway.InboundMessage{}, false
	}
	return msg, true
}
