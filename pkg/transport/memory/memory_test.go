package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remotefile/pkg/transport"
	"github.com/marmos91/remotefile/pkg/transport/transporttest"
)

func TestTransportContract(t *testing.T) {
	var serial atomic.Int64

	suite := &transporttest.Suite{
		NewClient: func(t *testing.T) (transport.Client, transporttest.URLFunc) {
			server := NewServer()
			prefix := fmt.Sprintf("memory://%d/", serial.Add(1))
			return server.Client(), func(name string) string {
				return prefix + name
			}
		},
	}
	suite.Run(t)
}

func TestQueryConfig(t *testing.T) {
	server := NewServer()
	server.SetConfig("readv_ior_max", "65536")
	server.SetConfig("readv_iov_max", "16")

	client := server.Client()
	status, response := client.QueryConfig(context.Background(), "memory://server",
		[]string{"readv_ior_max", "readv_iov_max"})
	require.True(t, status.IsOK())
	assert.Equal(t, "65536\n16", response)
	assert.Equal(t, int64(1), server.ConfigQueries())

	// Unknown parameters get an empty line in position.
	status, response = client.QueryConfig(context.Background(), "memory://server",
		[]string{"readv_ior_max", "nonsense", "readv_iov_max"})
	require.True(t, status.IsOK())
	assert.Equal(t, "65536\n\n16", response)
}

func TestQueryConfigUnsupportedWhenEmpty(t *testing.T) {
	server := NewServer()

	status, _ := server.Client().QueryConfig(context.Background(), "memory://server",
		[]string{"readv_ior_max"})
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeNotSupported, status.Code)
}

func TestServerURLTracksHandleLifecycle(t *testing.T) {
	server := NewServer()
	server.Put("memory://lifecycle", []byte("data"))

	f := server.Client().NewFile()
	assert.Empty(t, f.ServerURL(), "URL must be empty before open")

	require.True(t, f.Open(context.Background(), "memory://lifecycle", transport.ModeRead, nil).IsOK())
	assert.Equal(t, "memory://server", f.ServerURL())

	require.True(t, f.Close(context.Background()).IsOK())
	assert.Empty(t, f.ServerURL(), "URL must be empty after close")
}

func TestOpenDelayKeepsAsyncOpenInFlight(t *testing.T) {
	server := NewServer()
	server.Put("memory://slow", []byte("data"))
	server.SetOpenDelay(30 * time.Millisecond)

	f := server.Client().NewFile()

	done := make(chan transport.Status, 1)
	start := time.Now()
	submit := f.Open(context.Background(), "memory://slow", transport.ModeRead, func(st transport.Status) {
		done <- st
	})
	require.True(t, submit.IsOK())

	st := <-done
	require.True(t, st.IsOK())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestFailNextOpenFiresOnce(t *testing.T) {
	server := NewServer()
	server.Put("memory://f", []byte("data"))
	server.FailNextOpen(transport.Errorf(transport.CodeUnavailable, "injected"))

	f := server.Client().NewFile()
	status := f.Open(context.Background(), "memory://f", transport.ModeRead, nil)
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeUnavailable, status.Code)

	// The failure is consumed; the next open succeeds.
	status = f.Open(context.Background(), "memory://f", transport.ModeRead, nil)
	assert.True(t, status.IsOK())
}

func TestVectorReadEnforcesAdvertisedLimits(t *testing.T) {
	server := NewServer()
	server.Put("memory://limits", make([]byte, 1024))
	server.SetConfig("readv_ior_max", "64")
	server.SetConfig("readv_iov_max", "2")

	f := server.Client().NewFile()
	require.True(t, f.Open(context.Background(), "memory://limits", transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	handler := func(transport.Status) { t.Error("handler must not fire for a rejected submission") }

	// Too many chunks.
	status := f.VectorRead(context.Background(), []transport.Chunk{
		{Offset: 0, Length: 10, BufferOffset: 0},
		{Offset: 20, Length: 10, BufferOffset: 10},
		{Offset: 40, Length: 10, BufferOffset: 20},
	}, make([]byte, 30), handler)
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeInvalidArgs, status.Code)

	// Oversized chunk.
	status = f.VectorRead(context.Background(), []transport.Chunk{
		{Offset: 0, Length: 100, BufferOffset: 0},
	}, make([]byte, 100), handler)
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeInvalidArgs, status.Code)
}

func TestFailVectorReadAtSubmit(t *testing.T) {
	server := NewServer()
	server.Put("memory://v", make([]byte, 64))
	server.FailVectorRead(1, transport.Errorf(transport.CodeUnavailable, "injected"), true)

	f := server.Client().NewFile()
	require.True(t, f.Open(context.Background(), "memory://v", transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	status := f.VectorRead(context.Background(), []transport.Chunk{
		{Offset: 0, Length: 8, BufferOffset: 0},
	}, make([]byte, 8), func(transport.Status) {
		t.Error("handler must not fire for a failed submission")
	})
	require.False(t, status.IsOK())
	assert.Equal(t, int64(1), server.VectorReadCalls())
}

func TestFailVectorReadAtCompletion(t *testing.T) {
	server := NewServer()
	server.Put("memory://v", make([]byte, 64))
	server.FailVectorRead(1, transport.Errorf(transport.CodeIOError, "injected"), false)

	f := server.Client().NewFile()
	require.True(t, f.Open(context.Background(), "memory://v", transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	done := make(chan transport.Status, 1)
	status := f.VectorRead(context.Background(), []transport.Chunk{
		{Offset: 0, Length: 8, BufferOffset: 0},
	}, make([]byte, 8), func(st transport.Status) {
		done <- st
	})
	require.True(t, status.IsOK(), "submission succeeds; the failure arrives via the handler")

	st := <-done
	assert.Equal(t, transport.CodeIOError, st.Code)
}

func TestPutGetIsolatesCallers(t *testing.T) {
	server := NewServer()
	original := []byte("original")
	server.Put("memory://iso", original)

	// Mutating the seed slice or the returned copy must not affect the
	// stored contents.
	original[0] = 'X'
	got := server.Get("memory://iso")
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	assert.Equal(t, []byte("original"), server.Get("memory://iso"))

	assert.Nil(t, server.Get("memory://absent"))
}

func TestWriteExtendsFile(t *testing.T) {
	server := NewServer()
	server.Put("memory://grow", []byte("abc"))

	f := server.Client().NewFile()
	require.True(t, f.Open(context.Background(), "memory://grow", transport.ModeUpdate, nil).IsOK())
	defer f.Close(context.Background())

	// Writing past the end zero-fills the gap.
	require.True(t, f.Write(context.Background(), 5, []byte("XY")).IsOK())
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 'X', 'Y'}, server.Get("memory://grow"))
}
