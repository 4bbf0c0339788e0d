// Package viewcache keeps the list views the client renders consistent
// with freshly committed generation records. Writers use an optimistic
// update followed by a staleness mark: mounted views see the new record
// immediately, and the stale mark makes the next reader reconcile against
// the database.
package viewcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
)

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("viewcache: miss")

// Store is the minimal key-value surface the cache runs on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ListKey is the cache key for the generation list of one project scoped
// to one user.
func ListKey(projectID, userID uuid.UUID) string {
	return fmt.Sprintf("generations:%s:%s", projectID, userID)
}

// LineageKey is the cache key for the derivation chain of one lineage.
func LineageKey(lineageID uuid.UUID) string {
	return "generations:lineage:" + lineageID.String()
}

func staleKey(key string) string {
	return key + ":stale"
}

// Cache is a typed record-list cache over a Store.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a new cache. Entries live for ttl unless invalidated first.
func New(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// GetList returns the cached record list for key. stale reports whether
// the entry has been marked for reconciliation; callers seeing stale
// should refetch from the database and SetList the fresh result.
func (c *Cache) GetList(ctx context.Context, key string) (records []*domain.Record, stale, found bool) {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil, false, false
	}
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false, false
	}

	if err := json.Unmarshal(raw, &records); err != nil {
		c.logger.Warn("Cache entry does not decode, dropping", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false, false
	}

	if _, err := c.store.Get(ctx, staleKey(key)); err == nil {
		stale = true
	}
	return records, stale, true
}

// SetList replaces the cached list for key and clears its stale mark.
func (c *Cache) SetList(ctx context.Context, key string, records []*domain.Record) {
	raw, err := json.Marshal(records)
	if err != nil {
		c.logger.Warn("Cache entry does not encode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	_ = c.store.Delete(ctx, staleKey(key))
}

// Prepend inserts rec at the head of the cached list for key. A cache
// miss is a no-op: absent entries are already consistent, the next read
// hits the database.
func (c *Cache) Prepend(ctx context.Context, key string, rec *domain.Record) {
	records, _, found := c.GetList(ctx, key)
	if !found {
		return
	}

	updated := make([]*domain.Record, 0, len(records)+1)
	updated = append(updated, rec)
	for _, existing := range records {
		if existing.ID == rec.ID {
			continue
		}
		updated = append(updated, existing)
	}

	raw, err := json.Marshal(updated)
	if err != nil {
		c.logger.Warn("Cache entry does not encode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// MarkStale flags the entry for reconciliation without discarding it.
// Readers keep serving the optimistic data until a fresh SetList lands.
func (c *Cache) MarkStale(ctx context.Context, key string) {
	if err := c.store.Set(ctx, staleKey(key), []byte("1"), c.ttl); err != nil {
		c.logger.Warn("Cache stale mark failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the entries and their stale marks outright.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	all := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		all = append(all, key, staleKey(key))
	}
	if err := c.store.Delete(ctx, all...); err != nil {
		c.logger.Warn("Cache invalidation failed", zap.Error(err))
	}
}
