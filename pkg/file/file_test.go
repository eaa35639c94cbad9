package file

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remotefile/pkg/transport"
	"github.com/marmos91/remotefile/pkg/transport/memory"
)

func newTestServer(t *testing.T) *memory.Server {
	t.Helper()
	server := memory.NewServer()
	server.Put("memory://data.bin", []byte("0123456789abcdef"))
	return server
}

func openTestFile(t *testing.T, server *memory.Server, cfg Config) *File {
	t.Helper()
	if cfg.URL == "" {
		cfg.URL = "memory://data.bin"
	}
	if cfg.Mode == transport.ModeNone {
		cfg.Mode = transport.ModeRead
	}
	if cfg.Counters == nil {
		cfg.Counters = NewCounters()
	}
	f, err := Open(context.Background(), server.Client(), cfg)
	require.NoError(t, err)
	return f
}

func TestOpenValidation(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, err := Open(ctx, nil, Config{URL: "memory://x", Mode: transport.ModeRead})
	assert.Error(t, err)

	_, err = Open(ctx, server.Client(), Config{Mode: transport.ModeRead})
	assert.Error(t, err)

	_, err = Open(ctx, server.Client(), Config{URL: "memory://x"})
	assert.Error(t, err)
}

func TestOpenSyncSuccess(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	assert.Equal(t, StateOpen, f.State())
	assert.Equal(t, OpenSucceeded, f.OpenStatus())
	assert.Equal(t, "memory://data.bin", f.URL())
	assert.Equal(t, transport.ModeRead, f.Mode())
}

func TestOpenSyncNotFound(t *testing.T) {
	server := memory.NewServer()

	_, err := Open(context.Background(), server.Client(), Config{
		URL:  "memory://missing",
		Mode: transport.ModeRead,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestOpenAsyncResolvesOnFirstUse(t *testing.T) {
	server := newTestServer(t)
	server.SetOpenDelay(30 * time.Millisecond)

	f := openTestFile(t, server, Config{Async: true})
	defer f.Close(context.Background())

	// The handle exists before the open resolves.
	assert.Equal(t, OpenInProgress, f.OpenStatus())
	assert.Equal(t, StateClosed, f.State())

	// First I/O blocks until the open completes, then proceeds.
	buf := make([]byte, 4)
	n, err := f.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
	assert.Equal(t, OpenSucceeded, f.OpenStatus())
	assert.Equal(t, StateOpen, f.State())
}

func TestOpenAsyncFailureIsTerminal(t *testing.T) {
	server := newTestServer(t)
	server.SetOpenDelay(10 * time.Millisecond)
	server.FailNextOpen(transport.Errorf(transport.CodeNotFound, "no such file"))

	f := openTestFile(t, server, Config{Async: true})

	err := f.AwaitOpen(context.Background())
	require.ErrorIs(t, err, ErrOpenFailed)

	// Every subsequent use keeps failing without transport traffic.
	_, err = f.Read(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, ErrOpenFailed)

	err = f.AwaitOpen(context.Background())
	assert.ErrorIs(t, err, ErrOpenFailed)

	// Close of a never-opened handle is a clean no-op.
	require.NoError(t, f.Close(context.Background()))
	assert.Equal(t, StateClosed, f.State())
}

func TestReadAdvancesCursor(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	buf := make([]byte, 4)

	n, err := f.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
	assert.Equal(t, int64(4), f.Offset())

	n, err = f.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "4567", string(buf))
	assert.Equal(t, int64(8), f.Offset())

	assert.Equal(t, int64(8), f.BytesRead())
	assert.Equal(t, int64(2), f.ReadCalls())
}

func TestReadAtShortReadAtEOF(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	buf := make([]byte, 10)
	n, err := f.ReadAt(context.Background(), buf, 12)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "cdef", string(buf[:n]))

	// The cursor advances by the requested length, the byte counter by the
	// delivered bytes.
	assert.Equal(t, int64(22), f.Offset())
	assert.Equal(t, int64(4), f.BytesRead())
}

func TestWriteReadRoundtrip(t *testing.T) {
	server := memory.NewServer()
	f := openTestFile(t, server, Config{
		URL:  "memory://new.bin",
		Mode: transport.ModeNew,
	})

	n, err := f.Write(context.Background(), []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, int64(11), f.Offset())
	assert.Equal(t, int64(11), f.BytesWritten())

	buf := make([]byte, 5)
	n, err = f.ReadAt(context.Background(), buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	require.NoError(t, f.Close(context.Background()))
	assert.Equal(t, []byte("hello world"), server.Get("memory://new.bin"))
}

func TestWriteToReadOnlyHandleFails(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	_, err := f.Write(context.Background(), []byte("nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.Zero(t, f.BytesWritten())
}

func TestIOAfterCloseFailsFast(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	require.NoError(t, f.Close(context.Background()))

	_, err := f.Read(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, ErrNotUsable)

	_, err = f.Write(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotUsable)

	_, err = f.Seek(context.Background(), 0, SeekStart)
	assert.ErrorIs(t, err, ErrNotUsable)

	err = f.ReadScattered(context.Background(), []ReadRequest{{Offset: 0, Length: 1}}, make([]byte, 1))
	assert.ErrorIs(t, err, ErrNotUsable)
}

func TestSeekWhence(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	pos, err := f.Seek(context.Background(), 5, SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	pos, err = f.Seek(context.Background(), 3, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	pos, err = f.Seek(context.Background(), -6, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	// File is 16 bytes long.
	pos, err = f.Seek(context.Background(), -4, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)

	_, err = f.Seek(context.Background(), -100, SeekCurrent)
	assert.Error(t, err)
	assert.Equal(t, int64(12), f.Offset(), "failed seek must not move the cursor")

	_, err = f.Seek(context.Background(), 0, Whence(42))
	assert.Error(t, err)
}

func TestStatAndSize(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	info, err := f.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(16), info.Size)
	assert.False(t, info.ModTime.IsZero())

	size, err := f.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)
}

func TestReOpenSameModeIsNoOp(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	queriesBefore := server.ConfigQueries()

	result, err := f.ReOpen(context.Background(), transport.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, ReOpenUnchanged, result)
	assert.Equal(t, transport.ModeRead, f.Mode())

	// A real reopen would re-run the limits query; a no-op must not.
	assert.Equal(t, queriesBefore, server.ConfigQueries())
}

func TestReOpenFreshCreateCountsAsUpdate(t *testing.T) {
	server := memory.NewServer()
	f := openTestFile(t, server, Config{
		URL:  "memory://new.bin",
		Mode: transport.ModeNew,
	})
	defer f.Close(context.Background())

	result, err := f.ReOpen(context.Background(), transport.ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, ReOpenUnchanged, result)
	assert.Equal(t, transport.ModeNew, f.Mode())
}

func TestReOpenRejectsCreateModes(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	result, err := f.ReOpen(context.Background(), transport.ModeRecreate)
	require.NoError(t, err)
	assert.Equal(t, ReOpenUnchanged, result)
	assert.Equal(t, transport.ModeRead, f.Mode())
}

func TestReOpenSwitchesReadToUpdate(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	_, err := f.Write(context.Background(), []byte("x"))
	require.Error(t, err, "read handle must reject writes")

	result, err := f.ReOpen(context.Background(), transport.ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, ReOpenChanged, result)
	assert.Equal(t, transport.ModeUpdate, f.Mode())
	assert.Equal(t, StateOpen, f.State())

	_, err = f.WriteAt(context.Background(), []byte("XX"), 0)
	require.NoError(t, err)
	assert.Equal(t, "XX23456789abcdef", string(server.Get("memory://data.bin")))
}

func TestReOpenConcurrentWithAwaitOpen(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})
	defer f.Close(context.Background())

	// AwaitOpen re-runs the once-per-open initialization after a reopen,
	// reading handle state the reopen rewrites. Hammering both from
	// separate goroutines keeps the race detector honest.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, f.AwaitOpen(context.Background()))
		}
	}()
	go func() {
		defer wg.Done()
		modes := [2]transport.OpenMode{transport.ModeUpdate, transport.ModeRead}
		for i := 0; i < 50; i++ {
			_, err := f.ReOpen(context.Background(), modes[i%2])
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	assert.Equal(t, StateOpen, f.State())
}

func TestReOpenFailureLeavesZombie(t *testing.T) {
	server := newTestServer(t)
	f := openTestFile(t, server, Config{})

	server.FailNextOpen(transport.Errorf(transport.CodeIOError, "disk on fire"))

	_, err := f.ReOpen(context.Background(), transport.ModeUpdate)
	require.Error(t, err)
	assert.Equal(t, StateZombie, f.State())

	// A zombie refuses all further use; the failed reopen surfaces first.
	_, err = f.Read(context.Background(), make([]byte, 4))
	assert.ErrorIs(t, err, ErrOpenFailed)
}

// recordingCache counts cache interactions and serves a fixed pattern on
// hits.
type recordingCache struct {
	hit        bool
	reads      int
	writes     int
	storeWrite bool
}

func (c *recordingCache) TryRead(ctx context.Context, url string, offset int64, buf []byte) (CacheReadResult, error) {
	c.reads++
	if !c.hit {
		return CacheMiss, nil
	}
	for i := range buf {
		buf[i] = 'C'
	}
	return CacheHit, nil
}

func (c *recordingCache) TryWrite(ctx context.Context, url string, offset int64, data []byte) (CacheWriteResult, error) {
	c.writes++
	if c.storeWrite {
		return CacheStored, nil
	}
	return CachePassThrough, nil
}

func TestReadServedFromCache(t *testing.T) {
	server := newTestServer(t)
	cache := &recordingCache{hit: true}
	f := openTestFile(t, server, Config{Cache: cache})
	defer f.Close(context.Background())

	buf := make([]byte, 4)
	n, err := f.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "CCCC", string(buf))
	assert.Equal(t, 1, cache.reads)

	// Counters count cache hits like any other read.
	assert.Equal(t, int64(4), f.BytesRead())
	assert.Equal(t, int64(4), f.Offset())
}

func TestReadFallsThroughCacheMiss(t *testing.T) {
	server := newTestServer(t)
	cache := &recordingCache{hit: false}
	f := openTestFile(t, server, Config{Cache: cache})
	defer f.Close(context.Background())

	buf := make([]byte, 4)
	n, err := f.Read(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
	assert.Equal(t, 1, cache.reads)
}

func TestWriteStoredByCacheSkipsTransport(t *testing.T) {
	server := newTestServer(t)
	cache := &recordingCache{storeWrite: true}
	f := openTestFile(t, server, Config{Cache: cache, Mode: transport.ModeUpdate})
	defer f.Close(context.Background())

	n, err := f.WriteAt(context.Background(), []byte("ZZZZ"), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, cache.writes)

	// The transport never saw the write.
	assert.Equal(t, "0123456789abcdef", string(server.Get("memory://data.bin")))
	assert.Equal(t, int64(4), f.BytesWritten())
}

func TestInjectedCountersAggregate(t *testing.T) {
	server := newTestServer(t)
	counters := NewCounters()

	f1 := openTestFile(t, server, Config{Counters: counters})
	defer f1.Close(context.Background())
	f2 := openTestFile(t, server, Config{Counters: counters})
	defer f2.Close(context.Background())

	_, err := f1.ReadAt(context.Background(), make([]byte, 8), 0)
	require.NoError(t, err)
	_, err = f2.ReadAt(context.Background(), make([]byte, 8), 8)
	require.NoError(t, err)

	assert.Equal(t, int64(16), counters.BytesRead())
	assert.Equal(t, int64(2), counters.ReadCalls())
	assert.Zero(t, counters.BytesWritten())
	assert.Zero(t, counters.WriteCalls())
}
