package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/models"
)

// ConversationStore persists conversations and their turns.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Current returns the most-recently-updated non-ended conversation for jid,
// or nil if none exists.
func (s *ConversationStore) Current(jid string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.
		Where("jid = ? AND status <> ?", jid, models.ConversationEnded).
		Order("last_updated DESC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: current conversation for %s: %w", jid, err)
	}
	return &conv, nil
}

// Create starts a new active conversation for jid.
func (s *ConversationStore) Create(jid string) (*models.Conversation, error) {
	conv := models.Conversation{
		JID:         jid,
		Status:      models.ConversationActive,
		LastUpdated: time.Now(),
	}
	if err := s.db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("store: create conversation for %s: %w", jid, err)
	}
	return &conv, nil
}

// FindOrCreateCurrent returns the current conversation for jid, creating a
// fresh active one if every prior conversation has ended.
func (s *ConversationStore) FindOrCreateCurrent(jid string) (*models.Conversation, error) {
	conv, err := s.Current(jid)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}
	return s.Create(jid)
}

// AppendTurn appends one immutable turn to conv and bumps its LastUpdated.
// Annotations may be nil.
func (s *ConversationStore) AppendTurn(conv *models.Conversation, role, content string, annotations map[string]interface{}) (*models.Turn, error) {
	var annJSON string
	if len(annotations) > 0 {
		data, err := json.Marshal(annotations)
		if err != nil {
			return nil, fmt.Errorf("store: marshal turn annotations: %w", err)
		}
		annJSON = string(data)
	}

	turn := models.Turn{
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		Annotations:    annJSON,
	}
	if err := s.db.Create(&turn).Error; err != nil {
		return nil, fmt.Errorf("store: append turn: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(conv).Update("last_updated", now).Error; err != nil {
		return nil, fmt.Errorf("store: bump conversation timestamp: %w", err)
	}
	conv.LastUpdated = now
	return &turn, nil
}

// Turns returns conv's turns in chronological order.
func (s *ConversationStore) Turns(convID uint) ([]models.Turn, error) {
	var turns []models.Turn
	if err := s.db.Where("conversation_id = ?", convID).Order("id ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("store: load turns: %w", err)
	}
	return turns, nil
}

// History returns the last limit turns of jid's most recent conversation in
// chronological order. An absent conversation yields an empty history.
func (s *ConversationStore) History(jid string, limit int) ([]models.Turn, error) {
	var conv models.Conversation
	err := s.db.Where("jid = ?", jid).Order("last_updated DESC").First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest conversation for %s: %w", jid, err)
	}

	turns, err := s.Turns(conv.ID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// UpdateStatus transitions conv to status with an optimistic version check.
// Returns ErrConflict if another writer updated the conversation since it
// was read; the caller may re-read and retry once.
func (s *ConversationStore) UpdateStatus(conv *models.Conversation, status string) error {
	res := s.db.Model(&models.Conversation{}).
		Where("id = ? AND version = ?", conv.ID, conv.Version).
		Updates(map[string]interface{}{
			"status":       status,
			"version":      conv.Version + 1,
			"last_updated": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("store: update conversation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	conv.Status = status
	conv.Version++
	return nil
}

// Get loads a conversation with its turns.
func (s *ConversationStore) Get(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Preload("Turns", func(db *gorm.DB) *gorm.DB {
		return db.Order("turns.id ASC")
	}).First(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation %d: %w", id, err)
	}
	return &conv, nil
}

// Reload refreshes conv from the database.
func (s *ConversationStore) Reload(conv *models.Conversation) error {
	if err := s.db.First(conv, conv.ID).Error; err != nil {
		return fmt.Errorf("store: reload conversation %d: %w", conv.ID, err)
	}
	return nil
}

// RecentSummary is one row in the recent-conversations listing: the latest
// conversation per JID.
type RecentSummary struct {
	Conversation models.Conversation
	Contact      *models.Contact
}

// ListRecent returns the latest conversation per JID, newest first, with the
// matching contact when one exists. Status filters the conversations
// considered; empty means all.
func (s *ConversationStore) ListRecent(status string, page, limit int) ([]RecentSummary, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	base := s.db.Model(&models.Conversation{})
	if status != "" {
		base = base.Where("status = ?", status)
	}

	// Latest conversation id per JID, restricted by the same status filter.
	sub := s.db.Model(&models.Conversation{}).Select("MAX(id)").Group("jid")
	if status != "" {
		sub = sub.Where("status = ?", status)
	}

	var total int64
	if err := s.db.Model(&models.Conversation{}).Where("id IN (?)", sub).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count recent conversations: %w", err)
	}

	var convs []models.Conversation
	if err := s.db.Where("id IN (?)", sub).
		Order("last_updated DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&convs).Error; err != nil {
		return nil, 0, fmt.Errorf("store: list recent conversations: %w", err)
	}

	out := make([]RecentSummary, 0, len(convs))
	for _, conv := range convs {
		row := RecentSummary{Conversation: conv}
		var contact models.Contact
		if err := s.db.First(&contact, "jid = ?", conv.JID).Error; err == nil {
			row.Contact = &contact
		}
		out = append(out, row)
	}
	return out, total, nil
}

// ListForJID returns jid's conversations newest-first with turns preloaded,
// optionally only those created before the given time.
func (s *ConversationStore) ListForJID(jid string, limit int, before *time.Time) ([]models.Conversation, error) {
	q := s.db.Where("jid = ?", jid)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	if limit <= 0 {
		limit = 50
	}
	var convs []models.Conversation
	err := q.Preload("Turns", func(db *gorm.DB) *gorm.DB {
		return db.Order("turns.id ASC")
	}).Order("created_at DESC").Limit(limit).Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("store: conversations for %s: %w", jid, err)
	}
	return convs, nil
}
