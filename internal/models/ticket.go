package models

import "time"

// Ticket statuses.
const (
	TicketOpen       = "open"
	TicketInProgress = "in-progress"
	TicketResolved   = "resolved"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Ticket categories.
const (
	CategoryService   = "Service Appointment Issue"
	CategoryTestDrive = "Test Drive Inquiry"
	CategoryRoadside  = "Roadside Emergency"
	CategoryOther     = "Other"
)

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool {
	return s == TicketOpen || s == TicketInProgress || s == TicketResolved
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh || p == PriorityUrgent
}

// ValidCategory reports whether c is a known escalation category.
func ValidCategory(c string) bool {
	return c == CategoryService || c == CategoryTestDrive || c == CategoryRoadside || c == CategoryOther
}

// Ticket is an escalation record requiring human handling, linked to the
// conversation that was active at escalation time. ResolvedAt is set exactly
// once, on the first transition into resolved.
type Ticket struct {
	ID             string    `gorm:"primaryKey;size:36"`
	JID            string    `gorm:"column:jid;size:128;not null;index:idx_ticket_jid_status"`
	ConversationID uint      `gorm:"not null;index"`
	Category       string    `gorm:"size:32;not null;index:idx_ticket_status_cat,priority:2"`
	Status         string    `gorm:"size:16;default:open;index:idx_ticket_status_cat,priority:1;index:idx_ticket_jid_status,priority:2"`
	Priority       string    `gorm:"size:8;default:medium"`
	Summary        string    `gorm:"type:text;not null"`
	Assignee       string    `gorm:"size:64"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
	ResolvedAt     *time.Time

	Notes        []TicketNote `gorm:"foreignKey:TicketID"`
	Conversation Conversation `gorm:"foreignKey:ConversationID"`
}

// TicketNote is one operator note on a ticket, ordered by creation time.
type TicketNote struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TicketID  string `gorm:"size:36;not null;index"`
	Content   string `gorm:"type:text;not null"`
	Author    string `gorm:"size:64"`
	CreatedAt time.Time
}
