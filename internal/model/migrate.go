package model

import "gorm.io/gorm"

// AutoMigrate creates the local storage tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&KVEntry{},
		&Event{},
	)
}
