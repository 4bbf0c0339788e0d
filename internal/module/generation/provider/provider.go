package provider

import (
	"context"

	"github.com/prostudio/server/internal/domain/generation"
)

// Client is the provider-agnostic surface the orchestration layer talks to.
// Submit creates one remote job; Status performs one status poll against it.
type Client interface {
	// Name returns the client's provider name for logging and metrics.
	Name() string

	// Submit sends the job-creation request and returns the remote job
	// handle. The request must already be validated.
	Submit(ctx context.Context, req *generation.Request) (*generation.RemoteJob, error)

	// Status fetches the current state of a previously submitted job.
	Status(ctx context.Context, jobID string) (generation.JobStatus, error)
}

// errorEnvelope is the error body shape both provider proxies return on
// non-2xx responses.
type errorEnvelope struct {
	Error  string `json:"error,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}
