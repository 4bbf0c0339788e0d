package generation

import "errors"

// Validation errors, raised before any network call.
var (
	ErrInvalidKind   = errors.New("unsupported generation kind")
	ErrMissingScope  = errors.New("project and user are required")
	ErrMissingSource = errors.New("source image is required")
	ErrMissingPrompt = errors.New("prompt is required")
)

// Repository errors.
var (
	ErrRecordNotFound  = errors.New("generation record not found")
	ErrProjectNotFound = errors.New("project not found")
	// ErrDuplicateRecord signals a commit retry that already landed;
	// storage paths are unique per artifact.
	ErrDuplicateRecord = errors.New("generation record already committed")
)
