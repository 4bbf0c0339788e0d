package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/infra/persistence/entity"
)

// GenerationRecordRepository implements generation.RecordRepository.
type GenerationRecordRepository struct {
	db *gorm.DB
}

// NewGenerationRecordRepository creates a new generation record repository.
func NewGenerationRecordRepository(db *gorm.DB) *GenerationRecordRepository {
	return &GenerationRecordRepository{db: db}
}

var _ generation.RecordRepository = (*GenerationRecordRepository)(nil)

// Create creates a new record.
func (r *GenerationRecordRepository) Create(ctx context.Context, record *generation.Record) error {
	e := entity.FromDomainRecord(record)
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return generation.ErrDuplicateRecord
		}
		return fmt.Errorf("create generation record: %w", err)
	}
	return nil
}

// GetByID retrieves a record scoped to its owning user.
func (r *GenerationRecordRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*generation.Record, error) {
	var e entity.GenerationRecordEntity
	err := r.db.WithContext(ctx).
		First(&e, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, generation.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get generation record: %w", err)
	}
	return e.ToDomain(), nil
}

// ListByProject lists records for a project scoped to its owning user,
// newest first.
func (r *GenerationRecordRepository) ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*generation.Record, error) {
	var entities []entity.GenerationRecordEntity
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list generation records by project: %w", err)
	}

	records := make([]*generation.Record, len(entities))
	for i, e := range entities {
		records[i] = e.ToDomain()
	}
	return records, nil
}

// ListByLineage lists the derivation chain of a lineage, oldest first.
func (r *GenerationRecordRepository) ListByLineage(ctx context.Context, lineageID uuid.UUID) ([]*generation.Record, error) {
	var entities []entity.GenerationRecordEntity
	err := r.db.WithContext(ctx).
		Where("lineage_id = ?", lineageID).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list generation records by lineage: %w", err)
	}

	records := make([]*generation.Record, len(entities))
	for i, e := range entities {
		records[i] = e.ToDomain()
	}
	return records, nil
}

// Delete removes a record scoped to its owning user.
func (r *GenerationRecordRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&entity.GenerationRecordEntity{})
	if result.Error != nil {
		return fmt.Errorf("delete generation record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return generation.ErrRecordNotFound
	}
	return nil
}
