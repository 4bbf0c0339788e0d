package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prostudio/server/internal/domain/project"
	"github.com/prostudio/server/internal/infra/persistence/entity"
)

// ProjectRepository implements project.Repository.
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

var _ project.Repository = (*ProjectRepository)(nil)

// Create creates a new project.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	e := entity.FromDomainProject(p)
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project scoped to its owning user.
func (r *ProjectRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*project.Project, error) {
	var e entity.ProjectEntity
	err := r.db.WithContext(ctx).
		First(&e, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, project.ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return e.ToDomain(), nil
}

// ListByUser lists a user's projects, most recently updated first.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*project.Project, error) {
	var entities []entity.ProjectEntity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]*project.Project, len(entities))
	for i, e := range entities {
		projects[i] = e.ToDomain()
	}
	return projects, nil
}

// Update saves project changes.
func (r *ProjectRepository) Update(ctx context.Context, p *project.Project) error {
	e := entity.FromDomainProject(p)
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", p.ID, p.UserID).
		Updates(e)
	if result.Error != nil {
		return fmt.Errorf("update project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return project.ErrNotFound
	}
	return nil
}

// Delete removes a project scoped to its owning user.
func (r *ProjectRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&entity.ProjectEntity{})
	if result.Error != nil {
		return fmt.Errorf("delete project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return project.ErrNotFound
	}
	return nil
}
