package models

import "time"

// Conversation statuses.
const (
	ConversationActive    = "active"
	ConversationEnded     = "ended"
	ConversationEscalated = "escalated"
)

// Turn roles.
const (
	RoleUser     = "user"
	RoleBot      = "bot"
	RoleOperator = "operator"
)

// Conversation is one chat session with a counterparty. A JID may have many
// conversations over time; at most one non-ended conversation is current.
type Conversation struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	JID         string    `gorm:"column:jid;size:128;not null;index:idx_conv_jid_updated"`
	Status      string    `gorm:"size:16;default:active;index"`
	LastUpdated time.Time `gorm:"index:idx_conv_jid_updated"`
	Version     int       `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Turns []Turn `gorm:"foreignKey:ConversationID"`
}

// Turn is a single message within a conversation. Immutable once appended.
type Turn struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID uint   `gorm:"not null;index"`
	Role           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text;not null"`
	Annotations    string `gorm:"type:json"` // free-form JSON map (operator origin, location serviceType)
	CreatedAt      time.Time

	Conversation Conversation `gorm:"foreignKey:ConversationID"`
}
