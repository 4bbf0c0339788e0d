package generation

import "fmt"

// FailureKind is the closed set of classified failure categories a run can
// surface. Every terminal failure carries exactly one of these.
type FailureKind string

const (
	FailureValidation      FailureKind = "validation"
	FailureTransport       FailureKind = "transport"
	FailureRateLimited     FailureKind = "rate_limited"
	FailurePaymentRequired FailureKind = "payment_required"
	FailureNotFound        FailureKind = "not_found"
	FailureProvider        FailureKind = "provider"
	FailureUnknown         FailureKind = "unknown"
	FailurePollingTimeout  FailureKind = "polling_timeout"
	FailureDownload        FailureKind = "download"
	FailurePathValidation  FailureKind = "path_validation"
	FailureStorage         FailureKind = "storage"
	FailureCommit          FailureKind = "commit"
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	return string(k)
}

// Failure is the single classified error value surfaced past the
// orchestrator boundary. Downstream consumers switch on Kind instead of
// probing ad hoc fields.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the wrapped error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure creates a classified failure.
func NewFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// ClassifiedError is the result of classifying a raw provider response at
// the transport boundary. Its kinds are the subset of FailureKind a
// provider response can map to.
type ClassifiedError struct {
	Kind    FailureKind
	Message string
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsFailure converts the classified error into a run failure.
func (e *ClassifiedError) AsFailure() *Failure {
	return &Failure{Kind: e.Kind, Message: e.Message}
}
