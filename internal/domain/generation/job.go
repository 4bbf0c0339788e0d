package generation

import "time"

// JobState represents the provider-side state of a remote job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
	JobCanceled   JobState = "canceled"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns whether the state is terminal.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// RemoteJob identifies one provider-side unit of work. Created once per
// Request; never mutated.
type RemoteJob struct {
	ProviderJobID string
	Kind          Kind
	SubmittedAt   time.Time
}

// JobStatus is the transient result of a single status poll. It is never
// persisted.
type JobStatus struct {
	State JobState
	// Progress is the fractional progress in [0,1] when the provider
	// reports one; nil when only a textual status is available.
	Progress *float64
	// OutputRef is the artifact URL on Succeeded.
	OutputRef string
	// Reason is the provider-supplied failure reason on Failed.
	Reason string
}

// IsTerminal returns whether the status is terminal.
func (s JobStatus) IsTerminal() bool {
	return s.State.IsTerminal()
}
