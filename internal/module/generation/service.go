package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/domain/project"
	"github.com/prostudio/server/internal/module/generation/viewcache"
	"github.com/prostudio/server/internal/utils/metrics"
)

// Signer issues URLs against the application's object storage.
type Signer interface {
	SignedURL(ctx context.Context, storagePath string) (string, error)
	SignedUploadURL(ctx context.Context, storagePath string, size int64) (string, error)
}

// Storage is the object-storage surface the service needs: signing for
// reads and uploads, deletion when a record is removed.
type Storage interface {
	Signer
	Delete(ctx context.Context, paths []string) error
}

// GenerateInput is one user-initiated generation request.
type GenerateInput struct {
	Kind           domain.Kind
	ProjectID      uuid.UUID
	SourceRef      string
	SourceRecordID *uuid.UUID
	Prompt         string
	Model          string
	AspectRatio    string
	CameraMovement domain.CameraMovement
}

// CommitRetryInput retries only the commit stage of a run whose artifact
// is already in storage.
type CommitRetryInput struct {
	Kind           domain.Kind
	ProjectID      uuid.UUID
	Prompt         string
	Model          string
	SourceRecordID *uuid.UUID
	Artifact       domain.Artifact
}

// Service is the application surface of the generation subsystem. It
// scopes every operation to the requesting user, runs the orchestrator
// and serves the cached list views.
type Service struct {
	orch     *Orchestrator
	records  domain.RecordRepository
	projects project.Repository
	cache    *viewcache.Cache
	storage  Storage
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a new generation service.
func NewService(
	orch *Orchestrator,
	records domain.RecordRepository,
	projects project.Repository,
	cache *viewcache.Cache,
	store Storage,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		orch:     orch,
		records:  records,
		projects: projects,
		cache:    cache,
		storage:  store,
		metrics:  m,
		logger:   logger,
	}
}

// Generate runs one generation end to end and returns its terminal
// outcome. The call blocks until the run finishes; callers observe
// incremental progress through onProgress.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, input GenerateInput, onProgress ProgressFunc) (*Outcome, error) {
	if _, err := s.projects.GetByID(ctx, input.ProjectID, userID); err != nil {
		return nil, err
	}

	req, err := s.buildRequest(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := s.orch.Run(ctx, req, s.countingProgress(req.Kind, onProgress))
	s.recordOutcome(req.Kind, outcome, time.Since(start))
	return outcome, nil
}

// RetryCommit re-runs the commit stage for a partial failure. The
// artifact path must belong to the requesting user; a commit retry must
// not be able to adopt someone else's object.
func (s *Service) RetryCommit(ctx context.Context, userID uuid.UUID, input CommitRetryInput) (*Outcome, error) {
	if _, err := s.projects.GetByID(ctx, input.ProjectID, userID); err != nil {
		return nil, err
	}
	if err := validateScopedPath(input.Artifact.StoragePath, userID.String()); err != nil {
		return nil, domain.NewFailure(domain.FailurePathValidation,
			"artifact path is not scoped to the requesting user", err)
	}

	req := &domain.Request{
		Kind:           input.Kind,
		ProjectID:      input.ProjectID,
		UserID:         userID,
		SourceRef:      input.Artifact.StoragePath,
		Prompt:         input.Prompt,
		Model:          input.Model,
		SourceRecordID: input.SourceRecordID,
		SubmittedAt:    time.Now(),
	}
	if input.SourceRecordID != nil {
		source, err := s.records.GetByID(ctx, *input.SourceRecordID, userID)
		if err != nil {
			return nil, err
		}
		req.SourceLineageID = &source.LineageID
	}

	return s.orch.RetryCommit(ctx, input.Artifact, req), nil
}

// List returns the generation records of a project, newest first,
// serving the cached view when it is present and fresh.
func (s *Service) List(ctx context.Context, projectID, userID uuid.UUID) ([]*domain.Record, error) {
	key := viewcache.ListKey(projectID, userID)
	if cached, stale, found := s.cache.GetList(ctx, key); found && !stale {
		s.metrics.RecordCacheAccess("generations", true)
		return cached, nil
	}
	s.metrics.RecordCacheAccess("generations", false)

	records, err := s.records.ListByProject(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetList(ctx, key, records)
	return records, nil
}

// Lineage returns the derivation chain of a lineage, oldest first,
// restricted to the requesting user's records.
func (s *Service) Lineage(ctx context.Context, lineageID, userID uuid.UUID) ([]*domain.Record, error) {
	key := viewcache.LineageKey(lineageID)
	if cached, stale, found := s.cache.GetList(ctx, key); found && !stale {
		s.metrics.RecordCacheAccess("lineage", true)
		return scopeToUser(cached, userID), nil
	}
	s.metrics.RecordCacheAccess("lineage", false)

	records, err := s.records.ListByLineage(ctx, lineageID)
	if err != nil {
		return nil, err
	}
	s.cache.SetList(ctx, key, records)
	return scopeToUser(records, userID), nil
}

// DeleteRecord removes a record and its artifact. The database row goes
// first; a storage delete that fails afterwards leaves an orphan object,
// which is logged rather than resurrecting the record.
func (s *Service) DeleteRecord(ctx context.Context, recordID, userID uuid.UUID) error {
	record, err := s.records.GetByID(ctx, recordID, userID)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, recordID, userID); err != nil {
		return err
	}

	s.cache.Invalidate(ctx,
		viewcache.ListKey(record.ProjectID, record.UserID),
		viewcache.LineageKey(record.LineageID),
	)

	if err := s.storage.Delete(ctx, []string{record.Artifact.StoragePath}); err != nil {
		s.logger.Warn("Artifact delete failed, object orphaned",
			zap.String("record_id", recordID.String()),
			zap.String("path", record.Artifact.StoragePath),
			zap.Error(err),
		)
	}
	return nil
}

// ArtifactURL returns a signed read URL for a record's artifact.
func (s *Service) ArtifactURL(ctx context.Context, recordID, userID uuid.UUID) (string, error) {
	record, err := s.records.GetByID(ctx, recordID, userID)
	if err != nil {
		return "", err
	}
	return s.storage.SignedURL(ctx, record.Artifact.StoragePath)
}

// buildRequest assembles the immutable domain request, resolving the
// source record's lineage when the generation derives from one.
func (s *Service) buildRequest(ctx context.Context, userID uuid.UUID, input GenerateInput) (*domain.Request, error) {
	req := &domain.Request{
		Kind:           input.Kind,
		ProjectID:      input.ProjectID,
		UserID:         userID,
		SourceRef:      input.SourceRef,
		Prompt:         input.Prompt,
		Model:          input.Model,
		AspectRatio:    input.AspectRatio,
		CameraMovement: input.CameraMovement,
		SourceRecordID: input.SourceRecordID,
		SubmittedAt:    time.Now(),
	}

	if input.SourceRecordID != nil {
		source, err := s.records.GetByID(ctx, *input.SourceRecordID, userID)
		if err != nil {
			return nil, err
		}
		req.SourceLineageID = &source.LineageID

		if req.SourceRef == "" {
			// Derivative generations read their source from our own
			// storage; the provider fetches it through a signed URL.
			url, err := s.storage.SignedURL(ctx, source.Artifact.StoragePath)
			if err != nil {
				return nil, fmt.Errorf("sign source artifact: %w", err)
			}
			req.SourceRef = url
		}
	}

	return req, nil
}

func (s *Service) countingProgress(kind domain.Kind, onProgress ProgressFunc) ProgressFunc {
	return func(status domain.JobStatus, percent *float64) {
		s.metrics.GenerationPollTotal.WithLabelValues(kind.String()).Inc()
		if onProgress != nil {
			onProgress(status, percent)
		}
	}
}

func (s *Service) recordOutcome(kind domain.Kind, outcome *Outcome, elapsed time.Duration) {
	label := "done"
	if !outcome.Succeeded() {
		label = outcome.Failure.Kind.String()
	}
	s.metrics.RecordGenerationRun(kind.String(), label, elapsed)
	if outcome.Artifact != nil {
		s.metrics.RecordArtifact(outcome.Artifact.MimeKind.String(), outcome.Artifact.Size)
	}
}

func scopeToUser(records []*domain.Record, userID uuid.UUID) []*domain.Record {
	out := make([]*domain.Record, 0, len(records))
	for _, r := range records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}
