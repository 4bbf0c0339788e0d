package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/domain/project"
	"github.com/prostudio/server/internal/module/generation/viewcache"
	"github.com/prostudio/server/internal/utils/metrics"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.New("prostudio_servicetest")

type stubProjectRepo struct {
	projects map[uuid.UUID]*project.Project
}

func newStubProjectRepo(projects ...*project.Project) *stubProjectRepo {
	repo := &stubProjectRepo{projects: make(map[uuid.UUID]*project.Project)}
	for _, p := range projects {
		repo.projects[p.ID] = p
	}
	return repo
}

func (r *stubProjectRepo) Create(ctx context.Context, p *project.Project) error {
	r.projects[p.ID] = p
	return nil
}

func (r *stubProjectRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*project.Project, error) {
	p, ok := r.projects[id]
	if !ok || p.UserID != userID {
		return nil, project.ErrNotFound
	}
	return p, nil
}

func (r *stubProjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*project.Project, error) {
	var out []*project.Project
	for _, p := range r.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubProjectRepo) Update(ctx context.Context, p *project.Project) error {
	r.projects[p.ID] = p
	return nil
}

func (r *stubProjectRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	delete(r.projects, id)
	return nil
}

type stubSigner struct {
	readURLs   int
	uploadURLs int
	deleted    []string
	deleteErr  error
}

func (s *stubSigner) SignedURL(ctx context.Context, storagePath string) (string, error) {
	s.readURLs++
	return "https://storage.example.com/" + storagePath + "?sig=r", nil
}

func (s *stubSigner) SignedUploadURL(ctx context.Context, storagePath string, size int64) (string, error) {
	s.uploadURLs++
	return "https://storage.example.com/" + storagePath + "?sig=w", nil
}

func (s *stubSigner) Delete(ctx context.Context, paths []string) error {
	s.deleted = append(s.deleted, paths...)
	return s.deleteErr
}

type serviceFixture struct {
	*fixture
	service  *Service
	records  *mockRecordStore
	projects *stubProjectRepo
	signer   *stubSigner
	cache    *viewcache.Cache
	project  *project.Project
	userID   uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	userID := uuid.New()
	p, err := project.New(userID, "Catalog shots", "", nil)
	require.NoError(t, err)

	f := newFixture()
	records := new(mockRecordStore)
	projects := newStubProjectRepo(p)
	signer := &stubSigner{}
	cache := viewcache.New(viewcache.NewMemoryStore(), time.Minute, zap.NewNop())

	return &serviceFixture{
		fixture:  f,
		service:  NewService(f.orch, records, projects, cache, signer, testMetrics, zap.NewNop()),
		records:  records,
		projects: projects,
		signer:   signer,
		cache:    cache,
		project:  p,
		userID:   userID,
	}
}

func TestService_Generate(t *testing.T) {
	t.Run("runs the pipeline for an owned project", func(t *testing.T) {
		f := newServiceFixture(t)

		outcome, err := f.service.Generate(context.Background(), f.userID, GenerateInput{
			Kind:      domain.KindImageEdit,
			ProjectID: f.project.ID,
			SourceRef: "https://storage.example.com/src.png",
			Prompt:    "remove the background",
		}, nil)

		require.NoError(t, err)
		assert.True(t, outcome.Succeeded())
		assert.Equal(t, 1, f.submitter.submits)
		assert.Equal(t, 1, f.committer.commits)
	})

	t.Run("rejects a project the user does not own", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.Generate(context.Background(), uuid.New(), GenerateInput{
			Kind:      domain.KindImageEdit,
			ProjectID: f.project.ID,
			SourceRef: "https://storage.example.com/src.png",
			Prompt:    "remove the background",
		}, nil)

		assert.ErrorIs(t, err, project.ErrNotFound)
		assert.Zero(t, f.submitter.submits)
	})

	t.Run("derivative run signs the source artifact and carries its lineage", func(t *testing.T) {
		f := newServiceFixture(t)
		source := &domain.Record{
			ID:        uuid.New(),
			ProjectID: f.project.ID,
			UserID:    f.userID,
			LineageID: uuid.New(),
			Artifact:  domain.Artifact{StoragePath: f.userID.String() + "/" + f.project.ID.String() + "/image-edit-1.png"},
		}
		f.records.On("GetByID", mock.Anything, source.ID, f.userID).Return(source, nil)

		outcome, err := f.service.Generate(context.Background(), f.userID, GenerateInput{
			Kind:           domain.KindImageToVideo,
			ProjectID:      f.project.ID,
			SourceRecordID: &source.ID,
			Prompt:         "rotate the product slowly",
		}, nil)

		require.NoError(t, err)
		assert.True(t, outcome.Succeeded())
		assert.Equal(t, 1, f.signer.readURLs)
		f.records.AssertExpectations(t)
	})

	t.Run("missing source record aborts before submit", func(t *testing.T) {
		f := newServiceFixture(t)
		sourceID := uuid.New()
		f.records.On("GetByID", mock.Anything, sourceID, f.userID).Return(nil, domain.ErrRecordNotFound)

		_, err := f.service.Generate(context.Background(), f.userID, GenerateInput{
			Kind:           domain.KindImageEdit,
			ProjectID:      f.project.ID,
			SourceRecordID: &sourceID,
			Prompt:         "sharpen",
		}, nil)

		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
		assert.Zero(t, f.submitter.submits)
	})
}

func TestService_RetryCommit(t *testing.T) {
	t.Run("retries only the commit stage", func(t *testing.T) {
		f := newServiceFixture(t)
		artifact := domain.Artifact{
			StoragePath: f.userID.String() + "/" + f.project.ID.String() + "/image-edit-7.png",
			MimeKind:    domain.MimeImage,
			Size:        1024,
		}

		outcome, err := f.service.RetryCommit(context.Background(), f.userID, CommitRetryInput{
			Kind:      domain.KindImageEdit,
			ProjectID: f.project.ID,
			Prompt:    "remove the background",
			Artifact:  artifact,
		})

		require.NoError(t, err)
		assert.True(t, outcome.Succeeded())
		assert.Zero(t, f.submitter.submits)
		assert.Equal(t, 1, f.committer.commits)
	})

	t.Run("rejects an artifact outside the user's prefix", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.RetryCommit(context.Background(), f.userID, CommitRetryInput{
			Kind:      domain.KindImageEdit,
			ProjectID: f.project.ID,
			Prompt:    "remove the background",
			Artifact:  domain.Artifact{StoragePath: uuid.NewString() + "/foreign/image-edit-7.png"},
		})

		var failure *domain.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, domain.FailurePathValidation, failure.Kind)
		assert.Zero(t, f.committer.commits)
	})
}

func TestService_List(t *testing.T) {
	t.Run("cache miss falls through to the repository and fills the cache", func(t *testing.T) {
		f := newServiceFixture(t)
		stored := []*domain.Record{
			{ID: uuid.New(), ProjectID: f.project.ID, UserID: f.userID, LineageID: uuid.New()},
		}
		f.records.On("ListByProject", mock.Anything, f.project.ID, f.userID).Return(stored, nil).Once()

		records, err := f.service.List(context.Background(), f.project.ID, f.userID)
		require.NoError(t, err)
		require.Len(t, records, 1)

		// Second read is served from the cache.
		again, err := f.service.List(context.Background(), f.project.ID, f.userID)
		require.NoError(t, err)
		assert.Equal(t, records[0].ID, again[0].ID)
		f.records.AssertExpectations(t)
	})

	t.Run("stale view is refetched", func(t *testing.T) {
		f := newServiceFixture(t)
		key := viewcache.ListKey(f.project.ID, f.userID)
		stored := []*domain.Record{
			{ID: uuid.New(), ProjectID: f.project.ID, UserID: f.userID, LineageID: uuid.New()},
		}
		f.cache.SetList(context.Background(), key, stored[:0])
		f.cache.MarkStale(context.Background(), key)
		f.records.On("ListByProject", mock.Anything, f.project.ID, f.userID).Return(stored, nil).Once()

		records, err := f.service.List(context.Background(), f.project.ID, f.userID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		f.records.AssertExpectations(t)
	})
}

func TestService_Lineage(t *testing.T) {
	f := newServiceFixture(t)
	lineageID := uuid.New()
	mine := &domain.Record{ID: uuid.New(), UserID: f.userID, LineageID: lineageID}
	theirs := &domain.Record{ID: uuid.New(), UserID: uuid.New(), LineageID: lineageID}
	f.records.On("ListByLineage", mock.Anything, lineageID).Return([]*domain.Record{mine, theirs}, nil).Once()

	records, err := f.service.Lineage(context.Background(), lineageID, f.userID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, mine.ID, records[0].ID)
}

func TestService_DeleteRecord(t *testing.T) {
	t.Run("removes the row, the cached views and the object", func(t *testing.T) {
		f := newServiceFixture(t)
		record := &domain.Record{
			ID:        uuid.New(),
			ProjectID: f.project.ID,
			UserID:    f.userID,
			LineageID: uuid.New(),
			Artifact:  domain.Artifact{StoragePath: f.userID.String() + "/p/image-edit-1.png"},
		}
		ctx := context.Background()
		listKey := viewcache.ListKey(record.ProjectID, record.UserID)
		f.cache.SetList(ctx, listKey, []*domain.Record{record})
		f.records.On("GetByID", mock.Anything, record.ID, f.userID).Return(record, nil)
		f.records.On("Delete", mock.Anything, record.ID, f.userID).Return(nil)

		require.NoError(t, f.service.DeleteRecord(ctx, record.ID, f.userID))

		_, _, found := f.cache.GetList(ctx, listKey)
		assert.False(t, found, "cached view must not keep serving the deleted record")
		assert.Equal(t, []string{record.Artifact.StoragePath}, f.signer.deleted)
		f.records.AssertExpectations(t)
	})

	t.Run("storage failure after the row delete does not undo it", func(t *testing.T) {
		f := newServiceFixture(t)
		record := &domain.Record{
			ID:        uuid.New(),
			ProjectID: f.project.ID,
			UserID:    f.userID,
			LineageID: uuid.New(),
			Artifact:  domain.Artifact{StoragePath: f.userID.String() + "/p/image-edit-2.png"},
		}
		f.signer.deleteErr = errors.New("bucket unavailable")
		f.records.On("GetByID", mock.Anything, record.ID, f.userID).Return(record, nil)
		f.records.On("Delete", mock.Anything, record.ID, f.userID).Return(nil)

		assert.NoError(t, f.service.DeleteRecord(context.Background(), record.ID, f.userID))
	})
}

func TestService_ArtifactURL(t *testing.T) {
	f := newServiceFixture(t)
	record := &domain.Record{
		ID:       uuid.New(),
		UserID:   f.userID,
		Artifact: domain.Artifact{StoragePath: f.userID.String() + "/p/image-edit-1.png"},
	}
	f.records.On("GetByID", mock.Anything, record.ID, f.userID).Return(record, nil)

	url, err := f.service.ArtifactURL(context.Background(), record.ID, f.userID)
	require.NoError(t, err)
	assert.Contains(t, url, record.Artifact.StoragePath)
}


