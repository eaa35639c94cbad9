// Package s3 implements a transport backed by Amazon S3 or any
// S3-compatible object store.
//
// A remote file is one object; URLs are object keys (an optional
// "s3://bucket/" prefix is stripped). Reads map onto byte-range GetObject
// calls, which makes the scattered read path genuinely concurrent: every
// chunk becomes an independent ranged GET issued from the batch's worker
// goroutine. Writes use read-modify-write with PutObject, which is
// adequate for the update sizes this client deals in; large sequential
// uploads belong in a multipart pipeline, not here.
//
// S3 advertises no vector read limits and config queries return
// NotSupported, so handles run with the default limits.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/remotefile/pkg/transport"
)

// Config configures the S3 transport.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the bucket holding the remote files.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string
}

// Client is a transport client bound to one bucket.
type Client struct {
	s3        *awss3.Client
	bucket    string
	keyPrefix string
}

// New creates an S3 transport client. The bucket must already exist;
// access is verified lazily on first open rather than here, so
// construction never needs the network.
func New(cfg Config) (*Client, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 transport: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 transport: bucket is required")
	}
	return &Client{s3: cfg.Client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

// NewFile returns a fresh, unopened handle.
func (c *Client) NewFile() transport.File {
	return &file{client: c}
}

// QueryConfig is not supported by S3.
func (c *Client) QueryConfig(ctx context.Context, serverURL string, params []string) (transport.Status, string) {
	return transport.Errorf(transport.CodeNotSupported, "s3 does not support config queries"), ""
}

func (c *Client) objectKey(url string) string {
	key := url
	if strings.HasPrefix(key, "s3://") {
		key = strings.TrimPrefix(key, "s3://")
		if i := strings.IndexByte(key, '/'); i >= 0 {
			key = key[i+1:]
		}
	}
	key = strings.TrimPrefix(key, "/")
	return c.keyPrefix + key
}

type file struct {
	client *Client

	mu   sync.Mutex
	key  string
	mode transport.OpenMode
	open bool
	size int64
}

func statusFromS3(err error, op string) transport.Status {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return transport.Errorf(transport.CodeNotFound, "%s: %v", op, err)
	default:
		return transport.Errorf(transport.CodeIOError, "%s: %v", op, err)
	}
}

// Open validates the object against the requested mode: existing-file
// modes head the object, ModeNew requires it absent, ModeRecreate puts an
// empty object.
func (f *file) Open(ctx context.Context, url string, mode transport.OpenMode, handler transport.CompletionHandler) transport.Status {
	complete := func() transport.Status {
		key := f.client.objectKey(url)

		head, err := f.client.s3.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(f.client.bucket),
			Key:    aws.String(key),
		})
		exists := err == nil

		var size int64
		if exists && head.ContentLength != nil {
			size = *head.ContentLength
		}

		switch mode {
		case transport.ModeRead, transport.ModeUpdate:
			if !exists {
				return transport.Errorf(transport.CodeNotFound, "open: no such object: %s", key)
			}
		case transport.ModeNew:
			if exists {
				return transport.Errorf(transport.CodeAlreadyExists, "open: object exists: %s", key)
			}
			if st := f.putEmpty(ctx, key); !st.IsOK() {
				return st
			}
		case transport.ModeRecreate:
			if st := f.putEmpty(ctx, key); !st.IsOK() {
				return st
			}
			size = 0
		default:
			return transport.Errorf(transport.CodeInvalidArgs, "open: invalid mode")
		}

		f.mu.Lock()
		f.key = key
		f.mode = mode
		f.open = true
		f.size = size
		f.mu.Unlock()
		return transport.OK()
	}

	if handler == nil {
		return complete()
	}

	go func() {
		handler(complete())
	}()
	return transport.OK()
}

func (f *file) putEmpty(ctx context.Context, key string) transport.Status {
	_, err := f.client.s3.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(f.client.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return statusFromS3(err, "open")
	}
	return transport.OK()
}

func (f *file) snapshot() (string, transport.OpenMode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, f.mode, f.open
}

// Close is purely local: S3 has no server-side handle to release.
func (f *file) Close(ctx context.Context) transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return transport.Errorf(transport.CodeNotOpen, "close: handle not open")
	}
	f.open = false
	return transport.OK()
}

// readRange performs one ranged GetObject into dst. A range starting at
// or past end of object reads zero bytes.
func (f *file) readRange(ctx context.Context, key string, offset int64, dst []byte) (transport.Status, int) {
	if len(dst) == 0 {
		return transport.OK(), 0
	}

	// S3 ranges are inclusive: bytes=offset-(offset+len-1).
	rangeStr := fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(dst))-1)

	result, err := f.client.s3.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(f.client.bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeStr),
	})
	if err != nil {
		// InvalidRange means the offset is at or past end of object.
		if strings.Contains(err.Error(), "InvalidRange") {
			return transport.OK(), 0
		}
		return statusFromS3(err, "read"), 0
	}
	defer result.Body.Close()

	n, err := io.ReadFull(result.Body, dst)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return transport.Errorf(transport.CodeIOError, "read: %v", err), n
	}
	return transport.OK(), n
}

func (f *file) Read(ctx context.Context, offset int64, buf []byte) (transport.Status, int) {
	key, _, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "read: handle not open"), 0
	}
	return f.readRange(ctx, key, offset, buf)
}

// Write downloads the object, applies the update and re-uploads it.
// PutObject replaces the whole object, so there is no cheaper correct
// path for a random-offset write.
func (f *file) Write(ctx context.Context, offset int64, data []byte) transport.Status {
	key, mode, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "write: handle not open")
	}
	if !mode.Writable() {
		return transport.Errorf(transport.CodeIOError, "write: handle is read-only")
	}

	result, err := f.client.s3.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(f.client.bucket),
		Key:    aws.String(key),
	})
	var existing []byte
	if err == nil {
		existing, err = io.ReadAll(result.Body)
		result.Body.Close()
		if err != nil {
			return transport.Errorf(transport.CodeIOError, "write: %v", err)
		}
	}

	end := offset + int64(len(data))
	if int64(len(existing)) < end {
		grown := make([]byte, end)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:end], data)

	_, err = f.client.s3.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(f.client.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(existing),
	})
	if err != nil {
		return statusFromS3(err, "write")
	}

	f.mu.Lock()
	if end > f.size {
		f.size = end
	}
	f.mu.Unlock()
	return transport.OK()
}

// VectorRead fans each chunk out as its own ranged GET. The batch
// completes when every chunk has; the first chunk failure aborts the
// remaining ones and is reported through the handler.
func (f *file) VectorRead(ctx context.Context, chunks []transport.Chunk, buf []byte, handler transport.CompletionHandler) transport.Status {
	key, _, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "vector read: handle not open")
	}
	if handler == nil {
		return transport.Errorf(transport.CodeInvalidArgs, "vector read: handler is required")
	}

	go func() {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr transport.Status = transport.OK()
		)

		for _, c := range chunks {
			wg.Add(1)
			go func(c transport.Chunk) {
				defer wg.Done()
				dst := buf[c.BufferOffset : int64(c.BufferOffset)+int64(c.Length)]
				if st, _ := f.readRange(ctx, key, c.Offset, dst); !st.IsOK() {
					mu.Lock()
					if firstErr.IsOK() {
						firstErr = st
					}
					mu.Unlock()
				}
			}(c)
		}

		wg.Wait()
		handler(firstErr)
	}()
	return transport.OK()
}

func (f *file) Stat(ctx context.Context, force bool) (transport.Status, transport.StatInfo) {
	key, _, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "stat: handle not open"), transport.StatInfo{}
	}

	if !force {
		f.mu.Lock()
		size := f.size
		f.mu.Unlock()
		return transport.OK(), transport.StatInfo{Size: size}
	}

	head, err := f.client.s3.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(f.client.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return statusFromS3(err, "stat"), transport.StatInfo{}
	}

	info := transport.StatInfo{}
	if head.ContentLength != nil {
		info.Size = *head.ContentLength
	}
	if head.LastModified != nil {
		info.ModTime = *head.LastModified
	}

	f.mu.Lock()
	f.size = info.Size
	f.mu.Unlock()
	return transport.OK(), info
}

func (f *file) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *file) ServerURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ""
	}
	return "s3://" + f.client.bucket
}
