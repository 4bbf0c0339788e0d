package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/prostudio/server/internal/domain/generation"
)

// GenerationRecordEntity is the GORM entity for generation records.
type GenerationRecordEntity struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProjectID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_generation_records_scope"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_generation_records_scope"`
	Kind        string     `gorm:"size:32;not null"`
	Prompt      string     `gorm:"type:text;not null"`
	Model       string     `gorm:"size:128;not null"`
	StoragePath string     `gorm:"size:512;not null;uniqueIndex"`
	MimeKind    string     `gorm:"size:16;not null"`
	Width       int        `gorm:"not null;default:0"`
	Height      int        `gorm:"not null;default:0"`
	Size        int64      `gorm:"not null;default:0"`
	LineageID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"not null;index"`
}

// TableName returns the database table name.
func (GenerationRecordEntity) TableName() string {
	return "generation_records"
}

// ToDomain converts the entity to a domain model.
func (e *GenerationRecordEntity) ToDomain() *generation.Record {
	return &generation.Record{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		UserID:    e.UserID,
		Kind:      generation.Kind(e.Kind),
		Prompt:    e.Prompt,
		Model:     e.Model,
		Artifact: generation.Artifact{
			StoragePath: e.StoragePath,
			MimeKind:    generation.MimeKind(e.MimeKind),
			Width:       e.Width,
			Height:      e.Height,
			Size:        e.Size,
		},
		LineageID: e.LineageID,
		ParentID:  e.ParentID,
		CreatedAt: e.CreatedAt,
	}
}

// FromDomainRecord converts a domain model to an entity.
func FromDomainRecord(r *generation.Record) *GenerationRecordEntity {
	return &GenerationRecordEntity{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		UserID:      r.UserID,
		Kind:        r.Kind.String(),
		Prompt:      r.Prompt,
		Model:       r.Model,
		StoragePath: r.Artifact.StoragePath,
		MimeKind:    r.Artifact.MimeKind.String(),
		Width:       r.Artifact.Width,
		Height:      r.Artifact.Height,
		Size:        r.Artifact.Size,
		LineageID:   r.LineageID,
		ParentID:    r.ParentID,
		CreatedAt:   r.CreatedAt,
	}
}
