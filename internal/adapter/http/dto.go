package http

import (
	"time"

	"github.com/google/uuid"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/domain/project"
)

type artifactDTO struct {
	StoragePath string `json:"storage_path"`
	MimeKind    string `json:"mime_kind"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Size        int64  `json:"size"`
}

type recordDTO struct {
	ID        uuid.UUID   `json:"id"`
	ProjectID uuid.UUID   `json:"project_id"`
	Kind      string      `json:"kind"`
	Prompt    string      `json:"prompt"`
	Model     string      `json:"model,omitempty"`
	Artifact  artifactDTO `json:"artifact"`
	LineageID uuid.UUID   `json:"lineage_id"`
	ParentID  *uuid.UUID  `json:"parent_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func toArtifactDTO(a domain.Artifact) artifactDTO {
	return artifactDTO{
		StoragePath: a.StoragePath,
		MimeKind:    a.MimeKind.String(),
		Width:       a.Width,
		Height:      a.Height,
		Size:        a.Size,
	}
}

func toRecordDTO(r *domain.Record) recordDTO {
	return recordDTO{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Kind:      r.Kind.String(),
		Prompt:    r.Prompt,
		Model:     r.Model,
		Artifact:  toArtifactDTO(r.Artifact),
		LineageID: r.LineageID,
		ParentID:  r.ParentID,
		CreatedAt: r.CreatedAt,
	}
}

func toRecordDTOs(records []*domain.Record) []recordDTO {
	out := make([]recordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordDTO(r))
	}
	return out
}

type generateRequest struct {
	Kind           string     `json:"kind" binding:"required"`
	SourceRef      string     `json:"source_ref"`
	SourceRecordID *uuid.UUID `json:"source_record_id"`
	Prompt         string     `json:"prompt" binding:"required"`
	Model          string     `json:"model"`
	AspectRatio    string     `json:"aspect_ratio"`
	CameraMovement string     `json:"camera_movement"`
}

type generateResponse struct {
	State           string       `json:"state"`
	Record          *recordDTO   `json:"record,omitempty"`
	Artifact        *artifactDTO `json:"artifact,omitempty"`
	Failure         *failureDTO  `json:"failure,omitempty"`
	CommitRetryable bool         `json:"commit_retryable,omitempty"`
}

type failureDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type commitRetryRequest struct {
	Kind           string      `json:"kind" binding:"required"`
	Prompt         string      `json:"prompt" binding:"required"`
	Model          string      `json:"model"`
	SourceRecordID *uuid.UUID  `json:"source_record_id"`
	Artifact       artifactDTO `json:"artifact" binding:"required"`
}

type projectDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProjectDTO(p *project.Project) projectDTO {
	return projectDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type createProjectRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type updateProjectRequest struct {
	Name *string   `json:"name"`
	Tags *[]string `json:"tags"`
}

type uploadURLRequest struct {
	Filename string `json:"filename" binding:"required"`
	Size     int64  `json:"size" binding:"required"`
}
