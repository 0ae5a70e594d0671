package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/models"
)

// TicketStore persists escalation tickets and their notes.
type TicketStore struct {
	db *gorm.DB
}

// NewTicketStore creates a TicketStore.
func NewTicketStore(db *gorm.DB) *TicketStore {
	return &TicketStore{db: db}
}

// Create persists a new ticket, assigning a UUID when the ID is empty.
func (s *TicketStore) Create(t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TicketOpen
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := s.db.Create(t).Error; err != nil {
		return fmt.Errorf("store: create ticket: %w", err)
	}
	return nil
}

// Get loads a ticket with its notes in chronological order.
func (s *TicketStore) Get(id string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.Preload("Notes", func(db *gorm.DB) *gorm.DB {
		return db.Order("ticket_notes.id ASC")
	}).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get ticket %s: %w", id, err)
	}
	return &t, nil
}

// Save persists changes to an existing ticket.
func (s *TicketStore) Save(t *models.Ticket) error {
	if err := s.db.Save(t).Error; err != nil {
		return fmt.Errorf("store: save ticket %s: %w", t.ID, err)
	}
	return nil
}

// AddNote appends a note to the ticket's ordered note list.
func (s *TicketStore) AddNote(ticketID, content, author string) (*models.TicketNote, error) {
	note := models.TicketNote{
		TicketID: ticketID,
		Content:  content,
		Author:   author,
	}
	if err := s.db.Create(&note).Error; err != nil {
		return nil, fmt.Errorf("store: add note to ticket %s: %w", ticketID, err)
	}
	return &note, nil
}

// Unresolved returns the open or in-progress ticket for a conversation, or
// nil if none exists. Used to keep escalation idempotent.
func (s *TicketStore) Unresolved(conversationID uint) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.
		Where("conversation_id = ? AND status <> ?", conversationID, models.TicketResolved).
		Order("created_at DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: unresolved ticket for conversation %d: %w", conversationID, err)
	}
	return &t, nil
}

// TicketListOpts filters the ticket listing.
type TicketListOpts struct {
	Status   string
	Category string
	Priority string
	Assignee string
	Page     int
	Limit    int
}

// List returns tickets matching opts, newest first, with the total count.
func (s *TicketStore) List(opts TicketListOpts) ([]models.Ticket, int64, error) {
	q := s.db.Model(&models.Ticket{})
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	if opts.Priority != "" {
		q = q.Where("priority = ?", opts.Priority)
	}
	if opts.Assignee != "" {
		q = q.Where("assignee = ?", opts.Assignee)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count tickets: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	var tickets []models.Ticket
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("store: list tickets: %w", err)
	}
	return tickets, total, nil
}
