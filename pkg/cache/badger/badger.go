// Package badger implements a persistent block cache for remote file
// handles on top of BadgerDB.
//
// Like the in-memory cache it is keyed by (url, offset, length), so only
// exact-range probes hit. Persistence makes it worthwhile for workloads
// that reread the same remote ranges across process restarts, the typical
// pattern for analysis jobs scanning fixed regions of large remote files.
//
// Storage Model:
// One cached range is one Badger key "url\x00offset\x00length" with the
// raw bytes as value. Entries carry an optional TTL so the cache cannot
// serve arbitrarily stale data for mutable remote files.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/remotefile/internal/logger"
	"github.com/marmos91/remotefile/pkg/file"
)

// Config configures the persistent cache.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger without disk persistence, useful in tests.
	InMemory bool

	// TTL expires cached ranges after this duration. Zero keeps entries
	// until Badger's own garbage collection removes them. Badger expiry
	// has whole-second granularity, so TTLs under one second are rounded
	// up to one second.
	TTL time.Duration
}

// Cache is a Badger-backed block cache. Safe for concurrent use.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// New opens (or creates) the cache database.
func New(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("badger cache: directory is required")
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger cache: failed to open database: %w", err)
	}

	ttl := cfg.TTL
	if ttl > 0 && ttl < time.Second {
		// Entry expiry is stored as Unix seconds; a shorter TTL would
		// expire entries at write time.
		ttl = time.Second
	}

	logger.Info("badger cache opened at %s (in-memory=%v, ttl=%v)", cfg.Dir, cfg.InMemory, ttl)
	return &Cache{db: db, ttl: ttl}, nil
}

// Close releases the database. The cache must not be used afterwards.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("badger cache: close: %w", err)
	}
	return nil
}

func cacheKey(url string, offset int64, length int) []byte {
	return []byte(fmt.Sprintf("%s\x00%d\x00%d", url, offset, length))
}

// TryRead fills buf if the exact range was stored earlier and has not
// expired.
func (c *Cache) TryRead(ctx context.Context, url string, offset int64, buf []byte) (file.CacheReadResult, error) {
	if err := ctx.Err(); err != nil {
		return file.CacheMiss, fmt.Errorf("badger cache read: %w", err)
	}

	result := file.CacheMiss
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(url, offset, len(buf)))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != len(buf) {
				// A stale entry from a different layout; treat as a miss.
				return nil
			}
			copy(buf, val)
			result = file.CacheHit
			return nil
		})
	})
	if err != nil {
		return file.CacheMiss, fmt.Errorf("badger cache read: %w", err)
	}
	return result, nil
}

// TryWrite stores the range and passes the write through to the
// transport: the cache never owns dirty data.
func (c *Cache) TryWrite(ctx context.Context, url string, offset int64, data []byte) (file.CacheWriteResult, error) {
	if err := ctx.Err(); err != nil {
		return file.CachePassThrough, fmt.Errorf("badger cache write: %w", err)
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(url, offset, len(data)), append([]byte(nil), data...))
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return file.CachePassThrough, fmt.Errorf("badger cache write: %w", err)
	}
	return file.CachePassThrough, nil
}
