// Package project holds the project aggregate: the container a user
// uploads product images into and runs generations against.
package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the project does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("project not found")
	// ErrInvalidName indicates an empty or oversized project name.
	ErrInvalidName = errors.New("invalid project name")
)

const maxNameLength = 120

// Project is a user-owned workspace of source images and generations.
type Project struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a project after validating its name.
func New(userID uuid.UUID, name, description string, tags []string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	now := time.Now()
	return &Project{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Tags:        normalizeTags(tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Rename updates the project name.
func (p *Project) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	p.Name = name
	p.UpdatedAt = time.Now()
	return nil
}

// SetTags replaces the project tags.
func (p *Project) SetTags(tags []string) {
	p.Tags = normalizeTags(tags)
	p.UpdatedAt = time.Now()
}

// normalizeTags trims, lowercases and deduplicates tags, preserving the
// first occurrence order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Repository persists projects.
type Repository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Project, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
