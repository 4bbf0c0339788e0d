package generation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the two supported generation flows.
type Kind string

const (
	KindImageEdit    Kind = "image-edit"
	KindImageToVideo Kind = "image-to-video"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether the kind is one of the supported flows.
func (k Kind) Valid() bool {
	switch k {
	case KindImageEdit, KindImageToVideo:
		return true
	default:
		return false
	}
}

// CameraMovement is the camera-movement vocabulary for video generation.
type CameraMovement string

const (
	CameraStatic   CameraMovement = "static"
	CameraZoomIn   CameraMovement = "zoom-in"
	CameraZoomOut  CameraMovement = "zoom-out"
	CameraPanLeft  CameraMovement = "pan-left"
	CameraPanRight CameraMovement = "pan-right"
	CameraOrbit    CameraMovement = "orbit"
)

// String returns the string representation of the camera movement.
func (m CameraMovement) String() string {
	return string(m)
}

// Request describes one user-initiated generation. It is immutable once
// submitted; a retry is a new Request.
type Request struct {
	Kind           Kind
	ProjectID      uuid.UUID
	UserID         uuid.UUID
	SourceRef      string // URL or storage path of the source image
	Prompt         string
	Model          string
	AspectRatio    string // internal vocabulary, e.g. "1:1", "9:16"
	CameraMovement CameraMovement
	// SourceLineageID links a derivative generation to its ancestor chain.
	SourceLineageID *uuid.UUID
	// SourceRecordID is the parent record when the source is itself generated.
	SourceRecordID *uuid.UUID
	SubmittedAt    time.Time
}

// Validate checks the request before any network call is made.
func (r *Request) Validate() error {
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if r.ProjectID == uuid.Nil || r.UserID == uuid.Nil {
		return ErrMissingScope
	}
	if strings.TrimSpace(r.SourceRef) == "" {
		return ErrMissingSource
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrMissingPrompt
	}
	return nil
}
