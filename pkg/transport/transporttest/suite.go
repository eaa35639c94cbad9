// Package transporttest provides a conformance suite for transport
// implementations. It tests the interface contract, not implementation
// details, so any backend (memory, fs, s3) can run the same checks.
//
// Usage:
//
//	func TestMyTransport(t *testing.T) {
//	    suite := &transporttest.Suite{
//	        NewClient: func(t *testing.T) (transport.Client, transporttest.URLFunc) {
//	            ...
//	        },
//	    }
//	    suite.Run(t)
//	}
package transporttest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remotefile/pkg/transport"
)

// URLFunc maps a short file name onto a URL valid for the client under
// test.
type URLFunc func(name string) string

// Suite is the transport contract test suite.
type Suite struct {
	// NewClient returns a fresh client plus a URL builder. Each call must
	// yield an isolated namespace so tests do not see each other's files.
	NewClient func(t *testing.T) (transport.Client, URLFunc)
}

// Run executes all conformance tests.
func (s *Suite) Run(t *testing.T) {
	t.Run("OpenMissingFile", s.testOpenMissingFile)
	t.Run("CreateWriteRead", s.testCreateWriteRead)
	t.Run("ExclusiveCreate", s.testExclusiveCreate)
	t.Run("RecreateTruncates", s.testRecreateTruncates)
	t.Run("ShortReadAtEOF", s.testShortReadAtEOF)
	t.Run("ReadOnlyRejectsWrite", s.testReadOnlyRejectsWrite)
	t.Run("AsyncOpen", s.testAsyncOpen)
	t.Run("VectorRead", s.testVectorRead)
	t.Run("Stat", s.testStat)
	t.Run("Lifecycle", s.testLifecycle)
}

// seed creates a file with the given contents through the transport.
func (s *Suite) seed(t *testing.T, client transport.Client, url string, data []byte) {
	t.Helper()
	f := client.NewFile()
	require.True(t, f.Open(context.Background(), url, transport.ModeRecreate, nil).IsOK())
	require.True(t, f.Write(context.Background(), 0, data).IsOK())
	require.True(t, f.Close(context.Background()).IsOK())
}

func (s *Suite) testOpenMissingFile(t *testing.T) {
	client, url := s.NewClient(t)

	f := client.NewFile()
	status := f.Open(context.Background(), url("missing.bin"), transport.ModeRead, nil)
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeNotFound, status.Code)
	assert.False(t, f.IsOpen())
}

func (s *Suite) testCreateWriteRead(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("roundtrip.bin")

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), target, transport.ModeNew, nil).IsOK())
	require.True(t, f.Write(context.Background(), 0, []byte("hello transport")).IsOK())
	require.True(t, f.Close(context.Background()).IsOK())

	r := client.NewFile()
	require.True(t, r.Open(context.Background(), target, transport.ModeRead, nil).IsOK())
	defer r.Close(context.Background())

	buf := make([]byte, 15)
	status, n := r.Read(context.Background(), 0, buf)
	require.True(t, status.IsOK())
	assert.Equal(t, 15, n)
	assert.Equal(t, "hello transport", string(buf))

	// Offset reads see the right slice.
	status, n = r.Read(context.Background(), 6, buf[:9])
	require.True(t, status.IsOK())
	assert.Equal(t, 9, n)
	assert.Equal(t, "transport", string(buf[:9]))
}

func (s *Suite) testExclusiveCreate(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("exclusive.bin")
	s.seed(t, client, target, []byte("taken"))

	f := client.NewFile()
	status := f.Open(context.Background(), target, transport.ModeNew, nil)
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeAlreadyExists, status.Code)
}

func (s *Suite) testRecreateTruncates(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("truncate.bin")
	s.seed(t, client, target, []byte("previous contents"))

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), target, transport.ModeRecreate, nil).IsOK())
	defer f.Close(context.Background())

	status, info := f.Stat(context.Background(), true)
	require.True(t, status.IsOK())
	assert.Zero(t, info.Size)
}

func (s *Suite) testShortReadAtEOF(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("short.bin")
	s.seed(t, client, target, []byte("abcd"))

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), target, transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	buf := make([]byte, 16)
	status, n := f.Read(context.Background(), 2, buf)
	require.True(t, status.IsOK(), "short read must not be an error")
	assert.Equal(t, 2, n)
	assert.Equal(t, "cd", string(buf[:n]))

	// Reading entirely past the end delivers zero bytes, still no error.
	status, n = f.Read(context.Background(), 100, buf)
	require.True(t, status.IsOK())
	assert.Zero(t, n)
}

func (s *Suite) testReadOnlyRejectsWrite(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("readonly.bin")
	s.seed(t, client, target, []byte("data"))

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), target, transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	status := f.Write(context.Background(), 0, []byte("nope"))
	assert.False(t, status.IsOK())
}

func (s *Suite) testAsyncOpen(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("async.bin")
	s.seed(t, client, target, []byte("async data"))

	f := client.NewFile()

	done := make(chan transport.Status, 1)
	submit := f.Open(context.Background(), target, transport.ModeRead, func(st transport.Status) {
		done <- st
	})
	require.True(t, submit.IsOK(), "submission must succeed")

	select {
	case st := <-done:
		require.True(t, st.IsOK())
	case <-time.After(5 * time.Second):
		t.Fatal("async open never completed")
	}

	assert.True(t, f.IsOpen())
	assert.NotEmpty(t, f.ServerURL())
	require.True(t, f.Close(context.Background()).IsOK())
}

func (s *Suite) testVectorRead(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("vector.bin")

	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	s.seed(t, client, target, data)

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), target, transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	// Three disjoint, out-of-order ranges packed into one buffer.
	chunks := []transport.Chunk{
		{Offset: 128, Length: 32, BufferOffset: 0},
		{Offset: 0, Length: 16, BufferOffset: 32},
		{Offset: 240, Length: 16, BufferOffset: 48},
	}
	buf := make([]byte, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	var result transport.Status
	submit := f.VectorRead(context.Background(), chunks, buf, func(st transport.Status) {
		result = st
		wg.Done()
	})
	require.True(t, submit.IsOK())
	wg.Wait()

	require.True(t, result.IsOK())
	assert.Equal(t, data[128:160], buf[0:32])
	assert.Equal(t, data[0:16], buf[32:48])
	assert.Equal(t, data[240:256], buf[48:64])
}

func (s *Suite) testStat(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("stat.bin")
	s.seed(t, client, target, make([]byte, 1234))

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), target, transport.ModeRead, nil).IsOK())
	defer f.Close(context.Background())

	for _, force := range []bool{false, true} {
		status, info := f.Stat(context.Background(), force)
		require.True(t, status.IsOK())
		assert.Equal(t, int64(1234), info.Size)
	}
}

func (s *Suite) testLifecycle(t *testing.T) {
	client, url := s.NewClient(t)
	target := url("lifecycle.bin")
	s.seed(t, client, target, []byte("x"))

	f := client.NewFile()
	assert.False(t, f.IsOpen())

	require.True(t, f.Open(context.Background(), target, transport.ModeRead, nil).IsOK())
	assert.True(t, f.IsOpen())
	assert.NotEmpty(t, f.ServerURL())

	require.True(t, f.Close(context.Background()).IsOK())
	assert.False(t, f.IsOpen())

	// I/O after close reports NotOpen.
	status, _ := f.Read(context.Background(), 0, make([]byte, 1))
	assert.Equal(t, transport.CodeNotOpen, status.Code)

	status = f.Write(context.Background(), 0, []byte("y"))
	assert.Equal(t, transport.CodeNotOpen, status.Code)

	status, _ = f.Stat(context.Background(), false)
	assert.Equal(t, transport.CodeNotOpen, status.Code)
}
