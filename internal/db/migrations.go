package db

import (
	"log"

	"gorm.io/gorm"
)

// runMigrations performs database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &TrackedLink{}); err != nil {
		return err
	}

	return normalizeLegacyLinks(db)
}

// normalizeLegacyLinks fixes rows written before status and network were
// constrained: empty status becomes active, unknown networks become other.
func normalizeLegacyLinks(db *gorm.DB) error {
	result := db.Model(&TrackedLink{}).
		Where("status = '' OR status IS NULL").
		Update("status", StatusActive)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Migrated %d links without status to %s", result.RowsAffected, StatusActive)
	}

	known := []Network{NetworkShareASale, NetworkAwin, NetworkOther}
	result = db.Model(&TrackedLink{}).
		Where("network NOT IN ? OR network IS NULL", known).
		Update("network", NetworkOther)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Migrated %d links with unknown network to %s", result.RowsAffected, NetworkOther)
	}

	return nil
}
