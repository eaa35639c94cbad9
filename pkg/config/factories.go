package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/remotefile/internal/logger"
	cacheBadger "github.com/marmos91/remotefile/pkg/cache/badger"
	cacheMemory "github.com/marmos91/remotefile/pkg/cache/memory"
	"github.com/marmos91/remotefile/pkg/file"
	"github.com/marmos91/remotefile/pkg/transport"
	transportFs "github.com/marmos91/remotefile/pkg/transport/fs"
	transportMemory "github.com/marmos91/remotefile/pkg/transport/memory"
	transportS3 "github.com/marmos91/remotefile/pkg/transport/s3"
)

// CreateTransport creates a transport client based on configuration.
//
// The Type field determines which implementation to create; the matching
// options map is decoded into that implementation's own configuration
// struct.
//
// Supported types:
//   - "memory": in-process server, useful for tests and demos
//   - "fs": local filesystem behind the transport interface
//   - "s3": Amazon S3 or any S3-compatible endpoint
func CreateTransport(ctx context.Context, cfg *TransportConfig, client ClientConfig) (transport.Client, error) {
	switch cfg.Type {
	case "memory":
		return transportMemory.NewServer().Client(), nil
	case "fs":
		return createFsTransport(ctx, cfg.FS)
	case "s3":
		return createS3Transport(ctx, cfg.S3, client)
	default:
		return nil, fmt.Errorf("unknown transport type: %q (supported: memory, fs, s3)", cfg.Type)
	}
}

// createFsTransport creates a filesystem-backed transport.
func createFsTransport(ctx context.Context, options map[string]any) (transport.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type FsTransportOptions struct {
		Root string `mapstructure:"root"`
	}

	var opts FsTransportOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode fs transport config: %w", err)
	}

	if opts.Root == "" {
		return nil, fmt.Errorf("fs transport: root is required")
	}

	client, err := transportFs.New(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create fs transport: %w", err)
	}

	return client, nil
}

// createS3Transport creates an S3-backed transport.
func createS3Transport(ctx context.Context, options map[string]any, client ClientConfig) (transport.Client, error) {
	type S3TransportOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	}

	var opts S3TransportOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode s3 transport config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 transport: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("s3 transport: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint support (MinIO, Localstack, etc.)
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, default credential chain otherwise
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := client.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := awsS3.NewFromConfig(awsCfg, func(o *awsS3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	tc, err := transportS3.New(transportS3.Config{
		Client:    s3Client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 transport: %w", err)
	}

	logger.Info("S3 transport initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return tc, nil
}

// CreateCache creates a local block cache based on configuration.
//
// Returns (nil, nil) for type "none": file handles treat a nil cache as
// pass-through.
func CreateCache(ctx context.Context, cfg *CacheConfig) (file.Cache, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return createMemoryCache(cfg.Memory)
	case "badger":
		return createBadgerCache(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown cache type: %q (supported: none, memory, badger)", cfg.Type)
	}
}

// createMemoryCache creates an in-memory block cache.
func createMemoryCache(options map[string]any) (file.Cache, error) {
	type MemoryCacheOptions struct {
		MaxBytes int64 `mapstructure:"max_bytes"`
	}

	var opts MemoryCacheOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory cache config: %w", err)
	}

	if opts.MaxBytes == 0 {
		opts.MaxBytes = cacheMemory.DefaultMaxBytes
	}

	return cacheMemory.New(opts.MaxBytes), nil
}

// createBadgerCache creates a BadgerDB-backed persistent block cache.
func createBadgerCache(ctx context.Context, options map[string]any) (file.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type BadgerCacheOptions struct {
		Dir      string        `mapstructure:"dir"`
		InMemory bool          `mapstructure:"in_memory"`
		TTL      time.Duration `mapstructure:"ttl"`
	}

	var opts BadgerCacheOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode badger cache options: %w", err)
	}

	if opts.Dir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger cache: dir is required unless in_memory is set")
	}

	cache, err := cacheBadger.New(cacheBadger.Config{
		Dir:      opts.Dir,
		InMemory: opts.InMemory,
		TTL:      opts.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger cache: %w", err)
	}

	return cache, nil
}
