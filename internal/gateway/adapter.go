// Package gateway bridges the conversation pipeline to a messaging platform.
package gateway

import (
	"context"
	"time"

	"github.com/avendano/forecourt/internal/llm"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. An adapter owns connection management and raw message I/O for a
// single messaging platform.
type Adapter interface {
	// Connect establishes a connection to the platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages. The channel is closed
	// when the context is cancelled or the adapter is closed. Listen must
	// only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage is a message received from the platform, already reduced
// to the fields the pipeline cares about.
type InboundMessage struct {
	JID           string        // conversation key (individual or group)
	SenderJID     string        // in groups, the participant who sent it
	PushName      string        // sender's display name, may be empty
	Text          string        // extracted message text
	IsGroup       bool          // whether JID addresses a group
	FromMe        bool          // whether we sent it ourselves
	MentionedJIDs []string      // JIDs mentioned in the message
	QuotedSender  string        // JID whose message this one replies to
	Location      *llm.Location // set for location shares, Text empty
	Timestamp     time.Time
}

// OutboundMessage is a message to deliver to the platform.
type OutboundMessage struct {
	JID  string
	Text string
}

// SelfIDer is an optional interface adapters implement to expose the bot's
// own JID. It enables mention and quoted-reply detection in groups.
type SelfIDer interface {
	SelfJID() string
}
