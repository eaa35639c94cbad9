package s3

import (
	"context"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/remotefile/pkg/transport"
)

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = New(Config{Client: &awss3.Client{}})
	assert.Error(t, err)

	c, err := New(Config{Client: &awss3.Client{}, Bucket: "b"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		url    string
		want   string
	}{
		{"bare key", "", "path/to/obj.bin", "path/to/obj.bin"},
		{"leading slash stripped", "", "/path/obj.bin", "path/obj.bin"},
		{"s3 url stripped", "", "s3://my-bucket/path/obj.bin", "path/obj.bin"},
		{"s3 url without key", "", "s3://my-bucket", ""},
		{"prefix applied", "data/", "obj.bin", "data/obj.bin"},
		{"prefix with s3 url", "data/", "s3://my-bucket/obj.bin", "data/obj.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{Client: &awss3.Client{}, Bucket: "my-bucket", KeyPrefix: tt.prefix})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.objectKey(tt.url))
		})
	}
}

func TestQueryConfigNotSupported(t *testing.T) {
	c, err := New(Config{Client: &awss3.Client{}, Bucket: "b"})
	require.NoError(t, err)

	status, _ := c.QueryConfig(context.Background(), "s3://b", []string{"readv_ior_max"})
	require.False(t, status.IsOK())
	assert.Equal(t, transport.CodeNotSupported, status.Code)
}

func TestUnopenedHandleRejectsIO(t *testing.T) {
	c, err := New(Config{Client: &awss3.Client{}, Bucket: "b"})
	require.NoError(t, err)

	f := c.NewFile()
	assert.False(t, f.IsOpen())
	assert.Empty(t, f.ServerURL())

	status, _ := f.Read(context.Background(), 0, make([]byte, 1))
	assert.Equal(t, transport.CodeNotOpen, status.Code)

	status = f.Write(context.Background(), 0, []byte("x"))
	assert.Equal(t, transport.CodeNotOpen, status.Code)

	status = f.Close(context.Background())
	assert.Equal(t, transport.CodeNotOpen, status.Code)
}
