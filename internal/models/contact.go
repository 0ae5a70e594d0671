package models

import "time"

// Contact is a counterparty (individual or group) known to the bot. The
// single Whitelisted flag gates whether the gateway forwards messages from
// this JID to the orchestrator at all.
type Contact struct {
	JID             string `gorm:"column:jid;primaryKey;size:128"`
	Name            string `gorm:"size:128"`
	Phone           string `gorm:"size:32"`
	IsGroup         bool   `gorm:"default:false"`
	Whitelisted     bool   `gorm:"default:false;index"`
	Tags            string `gorm:"type:json"` // JSON string array
	LastInteraction time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
