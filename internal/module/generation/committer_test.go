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
	"github.com/prostudio/server/internal/infra/events"
	"github.com/prostudio/server/internal/module/generation/viewcache"
)

type mockRecordStore struct {
	mock.Mock
}

func (m *mockRecordStore) Create(ctx context.Context, record *domain.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockRecordStore) ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*domain.Record, error) {
	args := m.Called(ctx, projectID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Record), args.Error(1)
}

func (m *mockRecordStore) ListByLineage(ctx context.Context, lineageID uuid.UUID) ([]*domain.Record, error) {
	args := m.Called(ctx, lineageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Record), args.Error(1)
}

func (m *mockRecordStore) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Record, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *mockRecordStore) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func commitRequest() *domain.Request {
	return &domain.Request{
		Kind:        domain.KindImageEdit,
		ProjectID:   uuid.New(),
		UserID:      uuid.New(),
		SourceRef:   "uploads/source.png",
		Prompt:      "prompt",
		Model:       "model",
		SubmittedAt: time.Now(),
	}
}

func commitArtifact() domain.Artifact {
	return domain.Artifact{
		StoragePath: "user/project/image-edit-1.png",
		MimeKind:    domain.MimeImage,
		Width:       512,
		Height:      512,
		Size:        2048,
	}
}

func newCommitterFixture(store domain.RecordRepository) (*Committer, *viewcache.Cache, *events.Bus) {
	cache := viewcache.New(viewcache.NewMemoryStore(), time.Hour, zap.NewNop())
	bus := events.NewBus(zap.NewNop())
	return NewCommitter(store, cache, bus, zap.NewNop()), cache, bus
}

func TestCommitter_Commit(t *testing.T) {
	t.Run("creates record and reconciles cached lists", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("Create", mock.Anything, mock.AnythingOfType("*generation.Record")).Return(nil)
		committer, cache, bus := newCommitterFixture(store)

		var published []events.Event
		bus.Register(events.NewHandlerFunc(
			[]string{events.TypeGenerationRecordCreated, events.TypeGenerationCacheStale},
			func(ctx context.Context, e events.Event) error {
				published = append(published, e)
				return nil
			}))

		req := commitRequest()
		ctx := context.Background()
		listKey := viewcache.ListKey(req.ProjectID, req.UserID)
		cache.SetList(ctx, listKey, []*domain.Record{{ID: uuid.New(), ProjectID: req.ProjectID, UserID: req.UserID}})

		record, err := committer.Commit(ctx, commitArtifact(), req)

		require.NoError(t, err)
		assert.Equal(t, req.ProjectID, record.ProjectID)
		assert.NotEqual(t, uuid.Nil, record.LineageID)
		store.AssertExpectations(t)

		cached, stale, found := cache.GetList(ctx, listKey)
		require.True(t, found)
		assert.True(t, stale, "optimistic entry must be marked for reconciliation")
		require.Len(t, cached, 2)
		assert.Equal(t, record.ID, cached[0].ID, "new record prepends")

		require.Len(t, published, 2)
		created, ok := published[0].(*events.GenerationRecordCreated)
		require.True(t, ok)
		assert.Equal(t, record.ID, created.Record.ID)

		staleEvent, ok := published[1].(*events.GenerationCacheStale)
		require.True(t, ok)
		assert.Contains(t, staleEvent.Keys, listKey)
		assert.Equal(t, record.LineageID, staleEvent.LineageID)
	})

	t.Run("uncached keys stay uncached", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("Create", mock.Anything, mock.Anything).Return(nil)
		committer, cache, _ := newCommitterFixture(store)

		req := commitRequest()
		record, err := committer.Commit(context.Background(), commitArtifact(), req)

		require.NoError(t, err)
		_, _, found := cache.GetList(context.Background(), viewcache.ListKey(req.ProjectID, req.UserID))
		assert.False(t, found, "prepend into a miss must not materialize an entry")
		assert.NotNil(t, record)
	})

	t.Run("lineage list is updated when request chains onto an ancestor", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("Create", mock.Anything, mock.Anything).Return(nil)
		committer, cache, _ := newCommitterFixture(store)

		lineage := uuid.New()
		req := commitRequest()
		req.SourceLineageID = &lineage

		ctx := context.Background()
		lineageKey := viewcache.LineageKey(lineage)
		cache.SetList(ctx, lineageKey, []*domain.Record{})

		record, err := committer.Commit(ctx, commitArtifact(), req)

		require.NoError(t, err)
		assert.Equal(t, lineage, record.LineageID)

		cached, stale, found := cache.GetList(ctx, lineageKey)
		require.True(t, found)
		assert.True(t, stale)
		require.Len(t, cached, 1)
		assert.Equal(t, record.ID, cached[0].ID)
	})

	t.Run("rejected write is a commit failure and touches no cache", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("Create", mock.Anything, mock.Anything).Return(errors.New("duplicate key"))
		committer, cache, _ := newCommitterFixture(store)

		req := commitRequest()
		ctx := context.Background()
		listKey := viewcache.ListKey(req.ProjectID, req.UserID)
		cache.SetList(ctx, listKey, []*domain.Record{})

		record, err := committer.Commit(ctx, commitArtifact(), req)

		assert.Nil(t, record)
		var failure *domain.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, domain.FailureCommit, failure.Kind)
		assert.Contains(t, failure.Message, commitArtifact().StoragePath)

		cached, stale, found := cache.GetList(ctx, listKey)
		require.True(t, found)
		assert.False(t, stale)
		assert.Empty(t, cached)
	})
}
