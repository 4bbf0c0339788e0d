package generation

import (
	"time"

	"github.com/google/uuid"
)

// MimeKind is the coarse media kind of a persisted artifact.
type MimeKind string

const (
	MimeImage MimeKind = "image"
	MimeVideo MimeKind = "video"
)

// String returns the string representation of the mime kind.
func (m MimeKind) String() string {
	return string(m)
}

// Artifact is a generation output materialized into this application's own
// storage. It is owned by the orchestration run until handed to the
// committer.
type Artifact struct {
	StoragePath string
	MimeKind    MimeKind
	// Width and Height are mandatory for images, zero for video.
	Width  int
	Height int
	Size   int64
}

// Record is the persisted outcome of one successful generation run.
type Record struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Kind      Kind
	Prompt    string
	Model     string
	Artifact  Artifact
	// LineageID links derivative generations into a chain; an edited image
	// may itself be the source of another edit or of a video.
	LineageID uuid.UUID
	// ParentID is the record this one was derived from, when any.
	ParentID  *uuid.UUID
	CreatedAt time.Time
}

// NewRecord builds the record for a persisted artifact. The lineage is
// propagated from the source when present and minted fresh otherwise.
func NewRecord(req *Request, artifact Artifact) *Record {
	lineage := uuid.New()
	if req.SourceLineageID != nil && *req.SourceLineageID != uuid.Nil {
		lineage = *req.SourceLineageID
	}
	return &Record{
		ID:        uuid.New(),
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Kind:      req.Kind,
		Prompt:    req.Prompt,
		Model:     req.Model,
		Artifact:  artifact,
		LineageID: lineage,
		ParentID:  req.SourceRecordID,
		CreatedAt: time.Now(),
	}
}
