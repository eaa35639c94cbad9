package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remotefile/pkg/file"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	cfg.InMemory = true
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRequiresDirOrInMemory(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestWriteReadRoundtrip(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	data := []byte("persistent range")
	result, err := c.TryWrite(ctx, "s3://bucket/obj", 4096, data)
	require.NoError(t, err)
	assert.Equal(t, file.CachePassThrough, result, "write-through cache must not swallow writes")

	buf := make([]byte, len(data))
	readResult, err := c.TryRead(ctx, "s3://bucket/obj", 4096, buf)
	require.NoError(t, err)
	assert.Equal(t, file.CacheHit, readResult)
	assert.Equal(t, data, buf)
}

func TestMissOnDifferentKey(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.TryWrite(ctx, "s3://bucket/obj", 0, []byte("0123456789"))
	require.NoError(t, err)

	result, err := c.TryRead(ctx, "s3://bucket/obj", 1, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, file.CacheMiss, result)

	result, err = c.TryRead(ctx, "s3://bucket/obj", 0, make([]byte, 5))
	require.NoError(t, err)
	assert.Equal(t, file.CacheMiss, result)

	result, err = c.TryRead(ctx, "s3://bucket/other", 0, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, file.CacheMiss, result)
}

func TestTTLExpiresEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("expiry has whole-second granularity")
	}

	c := newTestCache(t, Config{TTL: 2 * time.Second})
	ctx := context.Background()

	_, err := c.TryWrite(ctx, "u://f", 0, []byte("fleeting"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	result, err := c.TryRead(ctx, "u://f", 0, buf)
	require.NoError(t, err)
	require.Equal(t, file.CacheHit, result)

	time.Sleep(3 * time.Second)

	result, err = c.TryRead(ctx, "u://f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, file.CacheMiss, result)
}

func TestSubSecondTTLRoundsUp(t *testing.T) {
	// A TTL below the one-second expiry granularity would produce entries
	// that are already expired when written; New rounds it up instead.
	c := newTestCache(t, Config{TTL: 50 * time.Millisecond})
	ctx := context.Background()

	require.Equal(t, time.Second, c.ttl)

	_, err := c.TryWrite(ctx, "u://f", 0, []byte("kept"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	result, err := c.TryRead(ctx, "u://f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, file.CacheHit, result)
}

func TestOverwriteSameKey(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.TryWrite(ctx, "u://f", 0, []byte("old!"))
	require.NoError(t, err)
	_, err = c.TryWrite(ctx, "u://f", 0, []byte("new!"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	result, err := c.TryRead(ctx, "u://f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, file.CacheHit, result)
	assert.Equal(t, "new!", string(buf))
}

func TestHonorsContext(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.TryRead(ctx, "u://f", 0, make([]byte, 4))
	assert.Error(t, err)

	_, err = c.TryWrite(ctx, "u://f", 0, []byte("data"))
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := New(Config{Dir: dir})
	require.NoError(t, err)

	_, err = c.TryWrite(ctx, "u://f", 0, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = New(Config{Dir: dir})
	require.NoError(t, err)
	defer c.Close()

	buf := make([]byte, 7)
	result, err := c.TryRead(ctx, "u://f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, file.CacheHit, result)
	assert.Equal(t, "durable", string(buf))
}
