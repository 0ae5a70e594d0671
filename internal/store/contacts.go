package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/models"
)

// ContactStore persists counterparty records.
type ContactStore struct {
	db *gorm.DB
}

// NewContactStore creates a ContactStore.
func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{db: db}
}

// UpsertInbound records an inbound interaction from jid: creates the contact
// if unknown (not whitelisted), fills the name from the push name when empty,
// and bumps LastInteraction.
func (s *ContactStore) UpsertInbound(jid, pushName string, isGroup bool) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.First(&contact, "jid = ?", jid).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		contact = models.Contact{
			JID:             jid,
			Name:            pushName,
			Phone:           phoneFromJID(jid),
			IsGroup:         isGroup,
			LastInteraction: time.Now(),
		}
		if err := s.db.Create(&contact).Error; err != nil {
			return nil, fmt.Errorf("store: create contact %s: %w", jid, err)
		}
		return &contact, nil
	case err != nil:
		return nil, fmt.Errorf("store: lookup contact %s: %w", jid, err)
	}

	contact.LastInteraction = time.Now()
	if pushName != "" && contact.Name == "" {
		contact.Name = pushName
	}
	if err := s.db.Save(&contact).Error; err != nil {
		return nil, fmt.Errorf("store: update contact %s: %w", jid, err)
	}
	return &contact, nil
}

// phoneFromJID derives the phone number from the user part of a JID.
func phoneFromJID(jid string) string {
	if i := strings.Index(jid, "@"); i > 0 {
		return jid[:i]
	}
	return ""
}

// Get returns the contact for jid or ErrNotFound.
func (s *ContactStore) Get(jid string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.First(&contact, "jid = ?", jid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get contact %s: %w", jid, err)
	}
	return &contact, nil
}

// IsWhitelisted reports whether jid is permitted to talk to the bot.
// Unknown JIDs are not whitelisted.
func (s *ContactStore) IsWhitelisted(jid string) (bool, error) {
	contact, err := s.Get(jid)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return contact.Whitelisted, nil
}

// ContactListOpts filters the contact listing.
type ContactListOpts struct {
	Search      string // matches name, phone, or JID
	IsGroup     *bool
	Whitelisted *bool
	Page        int
	Limit       int
}

// List returns contacts matching opts with the total match count.
func (s *ContactStore) List(opts ContactListOpts) ([]models.Contact, int64, error) {
	q := s.db.Model(&models.Contact{})
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR jid LIKE ?", like, like, like)
	}
	if opts.IsGroup != nil {
		q = q.Where("is_group = ?", *opts.IsGroup)
	}
	if opts.Whitelisted != nil {
		q = q.Where("whitelisted = ?", *opts.Whitelisted)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count contacts: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var contacts []models.Contact
	if err := q.Order("last_interaction DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&contacts).Error; err != nil {
		return nil, 0, fmt.Errorf("store: list contacts: %w", err)
	}
	return contacts, total, nil
}

// ContactUpdate describes a partial contact update; nil fields are left
// unchanged.
type ContactUpdate struct {
	Name        *string
	Whitelisted *bool
	Tags        []string
}

// Update applies upd to the contact for jid.
func (s *ContactStore) Update(jid string, upd ContactUpdate) (*models.Contact, error) {
	contact, err := s.Get(jid)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		contact.Name = *upd.Name
	}
	if upd.Whitelisted != nil {
		contact.Whitelisted = *upd.Whitelisted
	}
	if upd.Tags != nil {
		data, err := json.Marshal(upd.Tags)
		if err != nil {
			return nil, fmt.Errorf("store: marshal tags: %w", err)
		}
		contact.Tags = string(data)
	}
	if err := s.db.Save(contact).Error; err != nil {
		return nil, fmt.Errorf("store: save contact %s: %w", jid, err)
	}
	return contact, nil
}

// Delete removes the contact for jid.
func (s *ContactStore) Delete(jid string) error {
	res := s.db.Delete(&models.Contact{}, "jid = ?", jid)
	if res.Error != nil {
		return fmt.Errorf("store: delete contact %s: %w", jid, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToWhitelist upserts a contact with the Whitelisted flag set.
func (s *ContactStore) AddToWhitelist(jid, name string, isGroup bool) (*models.Contact, error) {
	contact, err := s.Get(jid)
	if errors.Is(err, ErrNotFound) {
		contact = &models.Contact{
			JID:             jid,
			Name:            name,
			Phone:           phoneFromJID(jid),
			IsGroup:         isGroup,
			Whitelisted:     true,
			LastInteraction: time.Now(),
		}
		if err := s.db.Create(contact).Error; err != nil {
			return nil, fmt.Errorf("store: create whitelisted contact %s: %w", jid, err)
		}
		return contact, nil
	}
	if err != nil {
		return nil, err
	}

	contact.Whitelisted = true
	if name != "" {
		contact.Name = name
	}
	contact.IsGroup = isGroup
	if err := s.db.Save(contact).Error; err != nil {
		return nil, fmt.Errorf("store: whitelist contact %s: %w", jid, err)
	}
	return contact, nil
}

// RemoveFromWhitelist clears the Whitelisted flag for jid.
func (s *ContactStore) RemoveFromWhitelist(jid string) error {
	contact, err := s.Get(jid)
	if err != nil {
		return err
	}
	contact.Whitelisted = false
	if err := s.db.Save(contact).Error; err != nil {
		return fmt.Errorf("store: unwhitelist contact %s: %w", jid, err)
	}
	return nil
}

// Whitelisted returns all whitelisted contacts.
func (s *ContactStore) Whitelisted() ([]models.Contact, error) {
	var contacts []models.Contact
	if err := s.db.Where("whitelisted = ?", true).Order("last_interaction DESC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("store: list whitelisted contacts: %w", err)
	}
	return contacts, nil
}

// BroadcastFilter selects broadcast recipients.
type BroadcastFilter struct {
	IsGroup *bool
	Tags    []string
}

// BroadcastJIDs returns the whitelisted JIDs matching the filter.
func (s *ContactStore) BroadcastJIDs(f BroadcastFilter) ([]string, error) {
	q := s.db.Model(&models.Contact{}).Where("whitelisted = ?", true)
	if f.IsGroup != nil {
		q = q.Where("is_group = ?", *f.IsGroup)
	}
	if len(f.Tags) > 0 {
		// Tags are stored as a JSON array string; match any requested tag.
		var tagConds []string
		var args []interface{}
		for _, tag := range f.Tags {
			tagConds = append(tagConds, "tags LIKE ?")
			args = append(args, "%\""+tag+"\"%")
		}
		q = q.Where(strings.Join(tagConds, " OR "), args...)
	}

	var jids []string
	if err := q.Pluck("jid", &jids).Error; err != nil {
		return nil, fmt.Errorf("store: broadcast jids: %w", err)
	}
	return jids, nil
}
