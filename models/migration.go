package models

import (
	"fmt"

	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Lead{},
		&Opportunity{},
	)
	if err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	return nil
}
