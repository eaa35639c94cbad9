// Package memory implements an in-memory exact-range block cache for
// remote file handles.
//
// The cache is keyed by (url, offset, length): only a probe for exactly a
// previously stored range hits. That matches how the file layer uses it —
// the same reads tend to repeat with identical ranges — and keeps the
// implementation free of range arithmetic. Entries are evicted FIFO once
// the configured byte budget is exceeded.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/remotefile/pkg/file"
)

// DefaultMaxBytes bounds the cache when no budget is configured (64 MiB).
const DefaultMaxBytes = 64 << 20

type entryKey struct {
	url    string
	offset int64
	length int
}

// Cache is an in-memory block cache. Safe for concurrent use; a single
// instance is typically shared by many handles.
type Cache struct {
	mu       sync.Mutex
	entries  map[entryKey][]byte
	order    []entryKey
	size     int64
	maxBytes int64
}

// New creates a cache with the given byte budget; zero or negative
// selects DefaultMaxBytes.
func New(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Cache{
		entries:  make(map[entryKey][]byte),
		maxBytes: maxBytes,
	}
}

// TryRead fills buf if the exact range was stored earlier.
func (c *Cache) TryRead(ctx context.Context, url string, offset int64, buf []byte) (file.CacheReadResult, error) {
	if err := ctx.Err(); err != nil {
		return file.CacheMiss, fmt.Errorf("cache read: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[entryKey{url: url, offset: offset, length: len(buf)}]
	if !ok {
		return file.CacheMiss, nil
	}
	copy(buf, data)
	return file.CacheHit, nil
}

// TryWrite stores the range for later reads and passes the write through
// to the transport: this is a write-through cache, it never owns dirty
// data.
func (c *Cache) TryWrite(ctx context.Context, url string, offset int64, data []byte) (file.CacheWriteResult, error) {
	if err := ctx.Err(); err != nil {
		return file.CachePassThrough, fmt.Errorf("cache write: %w", err)
	}

	if int64(len(data)) > c.maxBytes {
		return file.CachePassThrough, nil
	}

	key := entryKey{url: url, offset: offset, length: len(data)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.size -= int64(len(old))
	} else {
		c.order = append(c.order, key)
	}
	c.entries[key] = append([]byte(nil), data...)
	c.size += int64(len(data))

	for c.size > c.maxBytes && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if victim, ok := c.entries[oldest]; ok {
			c.size -= int64(len(victim))
			delete(c.entries, oldest)
		}
	}

	return file.CachePassThrough, nil
}

// Len returns the number of cached ranges.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
