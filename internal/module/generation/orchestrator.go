package generation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/infra/events"
	"github.com/prostudio/server/internal/module/generation/provider"
)

// State names the stage an orchestration run is in. Each run owns its own
// state and reaches exactly one terminal state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StatePersisting State = "persisting"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Outcome is the single terminal result of a run.
type Outcome struct {
	State  State
	Record *domain.Record
	// Artifact is set on success and on commit failure, where the object
	// already exists in storage.
	Artifact *domain.Artifact
	Failure  *domain.Failure
	// CommitRetryable reports a partial failure: generation succeeded and
	// the artifact is persisted, only the record write failed. The caller
	// should offer a commit-only retry instead of regenerating.
	CommitRetryable bool
}

// Succeeded reports whether the run reached Done.
func (o *Outcome) Succeeded() bool {
	return o.State == StateDone
}

type submitter interface {
	Submit(ctx context.Context, req *domain.Request) (*domain.RemoteJob, error)
	SettingsFor(kind domain.Kind) (provider.PollSettings, bool)
}

type jobPoller interface {
	Poll(ctx context.Context, job *domain.RemoteJob, onProgress ProgressFunc, settings provider.PollSettings) (domain.JobStatus, error)
}

type artifactPersister interface {
	Persist(ctx context.Context, remoteURL string, req *domain.Request) (domain.Artifact, error)
}

type resultCommitter interface {
	Commit(ctx context.Context, artifact domain.Artifact, req *domain.Request) (*domain.Record, error)
}

// Orchestrator sequences submit, poll, persist and commit for one
// generation request and surfaces a single outcome.
type Orchestrator struct {
	submitter submitter
	poller    jobPoller
	persister artifactPersister
	committer resultCommitter
	bus       *events.Bus
	logger    *zap.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(
	submitter submitter,
	poller jobPoller,
	persister artifactPersister,
	committer resultCommitter,
	bus *events.Bus,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		submitter: submitter,
		poller:    poller,
		persister: persister,
		committer: committer,
		bus:       bus,
		logger:    logger,
	}
}

// Run executes one generation end to end. There is no automatic retry of
// any stage; a retry is a user-initiated new run. Once polling reports
// success, the remaining stages run detached from the caller's context so
// an abandoned caller cannot strand a succeeded-but-unpersisted artifact.
func (o *Orchestrator) Run(ctx context.Context, req *domain.Request, onProgress ProgressFunc) *Outcome {
	log := o.logger.With(
		zap.String("kind", req.Kind.String()),
		zap.String("project_id", req.ProjectID.String()),
		zap.String("user_id", req.UserID.String()),
	)

	if err := req.Validate(); err != nil {
		return o.failed(ctx, req, log, StateSubmitting,
			domain.NewFailure(domain.FailureValidation, err.Error(), err))
	}

	settings, ok := o.submitter.SettingsFor(req.Kind)
	if !ok {
		return o.failed(ctx, req, log, StateSubmitting,
			domain.NewFailure(domain.FailureValidation, "no provider for kind "+req.Kind.String(), domain.ErrInvalidKind))
	}

	job, err := o.submitter.Submit(ctx, req)
	if err != nil {
		return o.failed(ctx, req, log, StateSubmitting, failureFrom(err))
	}
	log = log.With(zap.String("job_id", job.ProviderJobID))
	log.Info("Job submitted")

	status, err := o.poller.Poll(ctx, job, onProgress, settings)
	if err != nil {
		return o.failed(ctx, req, log, StatePolling, failureFrom(err))
	}

	switch status.State {
	case domain.JobSucceeded:
		// continue below
	case domain.JobCanceled:
		return o.failed(ctx, req, log, StatePolling,
			domain.NewFailure(domain.FailureProvider, "generation was canceled by the provider", nil))
	default:
		reason := status.Reason
		if reason == "" {
			reason = "generation failed"
		}
		return o.failed(ctx, req, log, StatePolling,
			domain.NewFailure(domain.FailureProvider, reason, nil))
	}

	if status.OutputRef == "" {
		return o.failed(ctx, req, log, StatePersisting,
			domain.NewFailure(domain.FailureProvider, "provider reported success without an output", nil))
	}

	// Late stages outlive the caller. Aborting between upload and record
	// write would leave work that only an operator can reconcile.
	detached := context.WithoutCancel(ctx)

	artifact, err := o.persister.Persist(detached, status.OutputRef, req)
	if err != nil {
		return o.failed(ctx, req, log, StatePersisting, failureFrom(err))
	}

	record, err := o.committer.Commit(detached, artifact, req)
	if err != nil {
		failure := failureFrom(err)
		log.Error("Commit failed after artifact persisted",
			zap.String("path", artifact.StoragePath),
			zap.Error(failure),
		)
		o.bus.Publish(detached, events.NewGenerationRunFailed(req.ProjectID, req.UserID, req.Kind, failure))
		return &Outcome{
			State:           StateFailed,
			Artifact:        &artifact,
			Failure:         failure,
			CommitRetryable: true,
		}
	}

	log.Info("Run completed", zap.String("record_id", record.ID.String()))
	return &Outcome{
		State:    StateDone,
		Record:   record,
		Artifact: &artifact,
	}
}

// RetryCommit re-runs only the commit stage for an artifact whose earlier
// run failed past persistence.
func (o *Orchestrator) RetryCommit(ctx context.Context, artifact domain.Artifact, req *domain.Request) *Outcome {
	record, err := o.committer.Commit(context.WithoutCancel(ctx), artifact, req)
	if err != nil {
		failure := failureFrom(err)
		return &Outcome{
			State:           StateFailed,
			Artifact:        &artifact,
			Failure:         failure,
			CommitRetryable: true,
		}
	}
	return &Outcome{
		State:    StateDone,
		Record:   record,
		Artifact: &artifact,
	}
}

func (o *Orchestrator) failed(ctx context.Context, req *domain.Request, log *zap.Logger, stage State, failure *domain.Failure) *Outcome {
	log.Warn("Run failed",
		zap.String("stage", string(stage)),
		zap.String("failure_kind", failure.Kind.String()),
		zap.String("message", failure.Message),
	)
	o.bus.Publish(context.WithoutCancel(ctx), events.NewGenerationRunFailed(req.ProjectID, req.UserID, req.Kind, failure))
	return &Outcome{
		State:   StateFailed,
		Failure: failure,
	}
}

// failureFrom normalizes any stage error into a classified failure.
func failureFrom(err error) *domain.Failure {
	var failure *domain.Failure
	if errors.As(err, &failure) {
		return failure
	}
	var classified *domain.ClassifiedError
	if errors.As(err, &classified) {
		return classified.AsFailure()
	}
	return domain.NewFailure(domain.FailureUnknown, err.Error(), err)
}
