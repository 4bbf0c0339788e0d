package events

import (
	"github.com/google/uuid"

	"github.com/prostudio/server/internal/domain/generation"
)

// Event types emitted by the generation pipeline.
const (
	TypeGenerationRecordCreated = "generation.record.created"
	TypeGenerationCacheStale    = "generation.cache.stale"
	TypeGenerationRunFailed     = "generation.run.failed"
)

// GenerationRecordCreated fires after a generation record is committed to
// the database. Cache reconciliation and metrics hang off this event.
type GenerationRecordCreated struct {
	BaseEvent

	Record    *generation.Record `json:"record"`
	ProjectID uuid.UUID          `json:"project_id"`
	UserID    uuid.UUID          `json:"user_id"`
}

// NewGenerationRecordCreated creates a record-created event.
func NewGenerationRecordCreated(record *generation.Record) *GenerationRecordCreated {
	return &GenerationRecordCreated{
		BaseEvent: NewBaseEvent(TypeGenerationRecordCreated, record.ID, "GenerationRecord"),
		Record:    record,
		ProjectID: record.ProjectID,
		UserID:    record.UserID,
	}
}

// GenerationCacheStale fires after list view keys are stale-marked.
// Subscribers filter by project and user instead of reacting to a global
// invalidation signal.
type GenerationCacheStale struct {
	BaseEvent

	Keys      []string  `json:"keys"`
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	LineageID uuid.UUID `json:"lineage_id"`
}

// NewGenerationCacheStale creates a cache-stale event.
func NewGenerationCacheStale(record *generation.Record, keys []string) *GenerationCacheStale {
	return &GenerationCacheStale{
		BaseEvent: NewBaseEvent(TypeGenerationCacheStale, record.ID, "GenerationRecord"),
		Keys:      keys,
		ProjectID: record.ProjectID,
		UserID:    record.UserID,
		LineageID: record.LineageID,
	}
}

// GenerationRunFailed fires when a run reaches a terminal failure.
type GenerationRunFailed struct {
	BaseEvent

	ProjectID   uuid.UUID              `json:"project_id"`
	UserID      uuid.UUID              `json:"user_id"`
	Kind        generation.Kind        `json:"kind"`
	FailureKind generation.FailureKind `json:"failure_kind"`
	Message     string                 `json:"message"`
}

// NewGenerationRunFailed creates a run-failed event.
func NewGenerationRunFailed(projectID, userID uuid.UUID, kind generation.Kind, failure *generation.Failure) *GenerationRunFailed {
	return &GenerationRunFailed{
		BaseEvent:   NewBaseEvent(TypeGenerationRunFailed, projectID, "GenerationRun"),
		ProjectID:   projectID,
		UserID:      userID,
		Kind:        kind,
		FailureKind: failure.Kind,
		Message:     failure.Message,
	}
}
