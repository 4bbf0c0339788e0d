package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/module/generation/provider"
)

// notFoundGraceAttempts is how many initial polls may see a 404 before it
// turns fatal. Providers index freshly created jobs asynchronously, so the
// job id can lag behind the submit response.
const notFoundGraceAttempts = 3

// ProgressFunc receives one callback per poll attempt. percent is the
// provider-reported fractional progress in [0,1], nil when the provider
// only reports a textual state.
type ProgressFunc func(status domain.JobStatus, percent *float64)

// statusSource performs one status request for a job.
type statusSource interface {
	Status(ctx context.Context, kind domain.Kind, jobID string) (domain.JobStatus, error)
}

// Poller drives a remote job to a terminal status under a bounded attempt
// and interval budget.
type Poller struct {
	source statusSource
	logger *zap.Logger
}

// NewPoller creates a new poller.
func NewPoller(source statusSource, logger *zap.Logger) *Poller {
	return &Poller{
		source: source,
		logger: logger,
	}
}

// Poll queries the job status up to settings.MaxAttempts times, sleeping
// settings.Interval between attempts, and returns the first terminal
// status. onProgress is invoked exactly once per attempt. Exhausting the
// budget fails with a polling timeout.
func (p *Poller) Poll(ctx context.Context, job *domain.RemoteJob, onProgress ProgressFunc, settings provider.PollSettings) (domain.JobStatus, error) {
	if onProgress == nil {
		onProgress = func(domain.JobStatus, *float64) {}
	}

	for attempt := 1; ; attempt++ {
		status, err := p.source.Status(ctx, job.Kind, job.ProviderJobID)
		switch {
		case err == nil:
			onProgress(status, status.Progress)
			if status.IsTerminal() {
				p.logger.Info("Job reached terminal status",
					zap.String("job_id", job.ProviderJobID),
					zap.String("state", status.State.String()),
					zap.Int("attempts", attempt),
				)
				return status, nil
			}

		case isNotFound(err) && attempt <= notFoundGraceAttempts:
			// Not yet indexed, retried like a processing poll.
			p.logger.Debug("Job not yet visible to provider",
				zap.String("job_id", job.ProviderJobID),
				zap.Int("attempt", attempt),
			)
			onProgress(domain.JobStatus{State: domain.JobQueued}, nil)

		case isNotFound(err):
			return domain.JobStatus{}, domain.NewFailure(domain.FailureNotFound,
				fmt.Sprintf("job %s not found after %d attempts", job.ProviderJobID, attempt), err)

		default:
			return domain.JobStatus{}, err
		}

		if attempt >= settings.MaxAttempts {
			return domain.JobStatus{}, domain.NewFailure(domain.FailurePollingTimeout,
				fmt.Sprintf("job %s still not terminal after %d attempts", job.ProviderJobID, settings.MaxAttempts), nil)
		}

		if err := sleepCtx(ctx, settings.Interval); err != nil {
			return domain.JobStatus{}, domain.NewFailure(domain.FailureTransport, "polling interrupted", err)
		}
	}
}

func isNotFound(err error) bool {
	var classified *domain.ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind == domain.FailureNotFound
	}
	var failure *domain.Failure
	if errors.As(err, &failure) {
		return failure.Kind == domain.FailureNotFound
	}
	return false
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
