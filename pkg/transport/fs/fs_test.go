package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remotefile/pkg/transport"
	"github.com/marmos91/remotefile/pkg/transport/transporttest"
)

func TestTransportContract(t *testing.T) {
	suite := &transporttest.Suite{
		NewClient: func(t *testing.T) (transport.Client, transporttest.URLFunc) {
			client, err := New(t.TempDir())
			require.NoError(t, err)
			return client, func(name string) string {
				return "file://" + name
			}
		},
	}
	suite.Run(t)
}

func TestNewValidation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	root := filepath.Join(t.TempDir(), "nested", "root")
	client, err := New(root)
	require.NoError(t, err)
	assert.NotNil(t, client)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		url  string
		ok   bool
		name string
	}{
		{"file://plain.bin", true, "plain"},
		{"file://sub/dir/file.bin", true, "nested"},
		{"file://../outside.bin", false, "dotdot"},
		{"file://sub/../../outside.bin", false, "buried dotdot"},
		{"file://", false, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := resolve(root, tt.url)
			if tt.ok {
				require.NoError(t, err)
				assert.True(t, filepath.IsAbs(path))
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestOpenRejectsEscapingURL(t *testing.T) {
	client, err := New(t.TempDir())
	require.NoError(t, err)

	f := client.NewFile()
	status := f.Open(context.Background(), "file://../escape.bin", transport.ModeRecreate, nil)
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeInvalidArgs, status.Code)
}

func TestQueryConfigNotSupported(t *testing.T) {
	client, err := New(t.TempDir())
	require.NoError(t, err)

	status, _ := client.QueryConfig(context.Background(), "file:///tmp", []string{"readv_ior_max"})
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeNotSupported, status.Code)
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	root := t.TempDir()
	client, err := New(root)
	require.NoError(t, err)

	f := client.NewFile()
	require.True(t, f.Open(context.Background(), "file://a/b/c/deep.bin", transport.ModeNew, nil).IsOK())
	require.True(t, f.Write(context.Background(), 0, []byte("deep")).IsOK())
	require.True(t, f.Close(context.Background()).IsOK())

	data, err := os.ReadFile(filepath.Join(root, "a", "b", "c", "deep.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), data)
}
