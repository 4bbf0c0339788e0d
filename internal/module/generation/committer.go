package generation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/infra/events"
	"github.com/prostudio/server/internal/module/generation/viewcache"
)

// Committer writes the record for a persisted artifact and reconciles the
// cached list views that render it.
type Committer struct {
	store  domain.RecordRepository
	cache  *viewcache.Cache
	bus    *events.Bus
	logger *zap.Logger
}

// NewCommitter creates a new committer.
func NewCommitter(store domain.RecordRepository, cache *viewcache.Cache, bus *events.Bus, logger *zap.Logger) *Committer {
	return &Committer{
		store:  store,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

// Commit creates the database record for the artifact, then updates the
// affected cache keys in two phases: an optimistic prepend into any
// currently cached list, followed by a stale mark so the next reader
// reconciles against the database. A rejected write is a partial failure:
// the artifact already exists in storage, only the record is missing.
func (c *Committer) Commit(ctx context.Context, artifact domain.Artifact, req *domain.Request) (*domain.Record, error) {
	record := domain.NewRecord(req, artifact)

	if err := c.store.Create(ctx, record); err != nil {
		c.logger.Error("Record write rejected, artifact remains in storage",
			zap.String("path", artifact.StoragePath),
			zap.String("project_id", req.ProjectID.String()),
			zap.Error(err),
		)
		return nil, domain.NewFailure(domain.FailureCommit,
			"record write failed for artifact "+artifact.StoragePath, err)
	}

	keys := c.affectedKeys(record)
	for _, key := range keys {
		c.cache.Prepend(ctx, key, record)
		c.cache.MarkStale(ctx, key)
	}

	c.bus.Publish(ctx, events.NewGenerationRecordCreated(record))
	c.bus.Publish(ctx, events.NewGenerationCacheStale(record, keys))

	c.logger.Info("Generation record committed",
		zap.String("record_id", record.ID.String()),
		zap.String("project_id", record.ProjectID.String()),
		zap.String("lineage_id", record.LineageID.String()),
	)
	return record, nil
}

func (c *Committer) affectedKeys(record *domain.Record) []string {
	keys := []string{viewcache.ListKey(record.ProjectID, record.UserID)}
	if record.LineageID != uuid.Nil {
		keys = append(keys, viewcache.LineageKey(record.LineageID))
	}
	return keys
}
