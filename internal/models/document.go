package models

import "time"

// Document is one entry in the retrieval corpus: static reference text the
// response generator grounds its replies on. Append-only.
type Document struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Content   string `gorm:"type:text;not null"`
	Category  string `gorm:"size:32;index"`
	Keywords  string `gorm:"type:json"` // JSON string array
	CreatedAt time.Time
}
