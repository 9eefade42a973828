package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the given models, then applies indexes gorm tags cannot express.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp: %w", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return MigrateConstraints(db)
}
