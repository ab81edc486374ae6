// Package cache is a small TTL cache for catalog listings backed by an
// in-memory badger instance.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/icco/animeportal/lib/metrics"
)

// CatalogPrefix namespaces every catalog listing key.
const CatalogPrefix = "anime:"

type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// New opens an in-memory cache whose entries expire after ttl.
func New(ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl, logger: logger}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get decodes the entry at key into dst. It reports false on a miss.
func (c *Cache) Get(key string, dst any) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key with the cache TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(c.ttl))
	})
}

// DeletePrefix drops every key starting with prefix.
func (c *Cache) DeletePrefix(prefix string) error {
	if err := c.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("failed to drop cache prefix %s: %w", prefix, err)
	}
	return nil
}

// InvalidateCatalog drops all catalog listings. Failures are logged only;
// stale entries still expire with the TTL.
func (c *Cache) InvalidateCatalog(ctx context.Context) {
	if err := c.DeletePrefix(CatalogPrefix); err != nil {
		c.logger.WarnContext(ctx, "Failed to invalidate catalog cache", slog.Any("error", err))
	}
}

// Remember returns the cached value at key or computes, stores and returns it.
func Remember[T any](c *Cache, key string, fn func() (T, error)) (T, error) {
	var v T
	if c == nil {
		return fn()
	}
	ok, err := c.Get(key, &v)
	metrics.RecordCacheLookup(ok)
	if ok {
		return v, nil
	}
	if err != nil {
		c.logger.Warn("Cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	v, err = fn()
	if err != nil {
		return v, err
	}
	if err := c.Set(key, v); err != nil {
		c.logger.Warn("Cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return v, nil
}
