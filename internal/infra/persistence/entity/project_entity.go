package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/prostudio/server/internal/domain/project"
)

// ProjectEntity is the GORM entity for projects.
type ProjectEntity struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name        string         `gorm:"size:120;not null"`
	Description string         `gorm:"type:text"`
	Tags        pq.StringArray `gorm:"type:text[]"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

// TableName returns the database table name.
func (ProjectEntity) TableName() string {
	return "projects"
}

// ToDomain converts the entity to a domain model.
func (e *ProjectEntity) ToDomain() *project.Project {
	return &project.Project{
		ID:          e.ID,
		UserID:      e.UserID,
		Name:        e.Name,
		Description: e.Description,
		Tags:        []string(e.Tags),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// FromDomainProject converts a domain model to an entity.
func FromDomainProject(p *project.Project) *ProjectEntity {
	return &ProjectEntity{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		Description: p.Description,
		Tags:        pq.StringArray(p.Tags),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
