package persistence

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/prostudio/server/internal/infra/persistence/entity"
)

// Migrate creates or updates the database schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.ProjectEntity{},
		&entity.GenerationRecordEntity{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
