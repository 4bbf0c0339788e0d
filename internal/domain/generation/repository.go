package generation

import (
	"context"

	"github.com/google/uuid"
)

// RecordRepository persists generation records.
type RecordRepository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Record, error)
	ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*Record, error)
	ListByLineage(ctx context.Context, lineageID uuid.UUID) ([]*Record, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
