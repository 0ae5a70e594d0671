package db

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Contact{},
		&models.Conversation{},
		&models.Turn{},
		&models.Ticket{},
		&models.TicketNote{},
		&models.Document{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// NormalizeWhitelist folds the legacy dual allow-list fields into the single
// Whitelisted flag. Older databases carried both an "is_active" and a
// "whitelisted" column with unclear precedence; a contact allowed by either
// becomes Whitelisted, and the legacy column is dropped. Safe to run
// multiple times.
func NormalizeWhitelist(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasColumn(&models.Contact{}, "is_active") {
		return nil
	}
	if err := db.Exec("UPDATE contacts SET whitelisted = 1 WHERE is_active = 1").Error; err != nil {
		return fmt.Errorf("db: normalize whitelist: %w", err)
	}
	if err := m.DropColumn(&models.Contact{}, "is_active"); err != nil {
		return fmt.Errorf("db: drop legacy is_active column: %w", err)
	}
	return nil
}

// SeedDocument describes one corpus entry to seed.
type SeedDocument struct {
	Content  string
	Category string
	Keywords []string
}

// DefaultCorpus is the dealership reference corpus seeded on first run.
var DefaultCorpus = []SeedDocument{
	{
		Content: "Our service department is open Monday through Friday from 8am to 6pm, " +
			"and Saturday from 9am to 3pm. Service appointments can be scheduled through " +
			"our online portal or by calling our service desk at 555-123-4567.",
		Category: "service",
		Keywords: []string{"service hours", "appointments", "schedule"},
	},
	{
		Content: "Test drives can be booked for any vehicle in our inventory. Each test " +
			"drive typically lasts 30 minutes and requires a valid driver's license. " +
			"Weekend test drives are by appointment only.",
		Category: "sales",
		Keywords: []string{"test drive", "appointment", "license"},
	},
	{
		Content: "Our roadside assistance is available 24/7 by calling 555-HELP-NOW. " +
			"Service is free for vehicles under warranty and available for a fee for " +
			"out-of-warranty vehicles. Standard response time is under 60 minutes.",
		Category: "emergency",
		Keywords: []string{"roadside", "assistance", "emergency", "help"},
	},
	{
		Content: "Our 2023 Model X SUV features a 300hp engine, 30 MPG fuel efficiency, " +
			"and seats up to 7 passengers. It comes with a 5-year warranty and qualifies " +
			"for our 0% financing deal through the end of the month.",
		Category: "vehicles",
		Keywords: []string{"Model X", "SUV", "specs", "warranty", "financing"},
	},
}

// SeedCorpus inserts the default retrieval corpus if the documents table is
// empty. Existing corpora are left untouched.
func SeedCorpus(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Document{}).Count(&count).Error; err != nil {
		return fmt.Errorf("db: count documents: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, sd := range DefaultCorpus {
		kw, err := json.Marshal(sd.Keywords)
		if err != nil {
			return fmt.Errorf("db: marshal keywords: %w", err)
		}
		doc := models.Document{
			Content:  sd.Content,
			Category: sd.Category,
			Keywords: string(kw),
		}
		if err := db.Create(&doc).Error; err != nil {
			return fmt.Errorf("db: seed document: %w", err)
		}
	}
	return nil
}
