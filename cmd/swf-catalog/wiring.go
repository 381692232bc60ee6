package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"

	"github.com/kode4food/swfcatalog"
	"github.com/kode4food/swfcatalog/internal/archive"
	"github.com/kode4food/swfcatalog/internal/catalog"
	"github.com/kode4food/swfcatalog/internal/config"
	"github.com/kode4food/swfcatalog/internal/reader"
	"github.com/kode4food/swfcatalog/pkg/log"
)

// sinks holds the optional catalog sinks and the resources behind them
type sinks struct {
	redis   *redis.Client
	store   *catalog.RedisStore
	archive *archive.Archiver
}

const blobScheme = "blob"

var (
	ErrCreateStore   = errors.New("failed to create catalog store")
	ErrOpenArchive   = errors.New("failed to open snapshot archive")
	ErrOpenBucket    = errors.New("failed to open description bucket")
	ErrCreateReader  = errors.New("failed to create description reader")
	ErrUnknownScheme = errors.New("service URL scheme has no reader")
)

func loadConfig() (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := log.SetupWithWriter(
		w, swfcatalog.Name, cfg.Env, swfcatalog.Version, cfg.LogLevel,
	)
	logger.Info("Configuration loaded",
		slog.String("log_level", cfg.LogLevel),
		slog.String("service_url", cfg.ServiceURL),
		slog.String("catalog_redis_addr", cfg.Store.Addr),
		slog.Int("catalog_redis_db", cfg.Store.DB),
		slog.String("archive_bucket_url", cfg.Archive.BucketURL),
		slog.String("api_host", cfg.APIHost),
		slog.Int("api_port", cfg.APIPort))
	return logger
}

// newReader routes http and https URLs to a live fetch and, when a
// description bucket is configured, blob:// URLs to that bucket
func newReader(
	ctx context.Context, cfg *config.Config, logger *slog.Logger,
) (reader.Reader, func() error, error) {
	rd := reader.NewSchemeReader().Register(
		reader.NewHTTPReader(cfg.FetchTimeout, logger), "http", "https",
	)
	closer := func() error { return nil }

	if cfg.DescriptionBucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, cfg.DescriptionBucketURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrOpenBucket, err)
		}
		rd.Register(reader.NewBlobReader(bucket, ""), blobScheme)
		closer = bucket.Close
	}

	u, err := url.Parse(cfg.ServiceURL)
	if err != nil {
		_ = closer()
		return nil, nil, fmt.Errorf("%w: %w", ErrCreateReader, err)
	}
	switch u.Scheme {
	case "http", "https":
	case blobScheme:
		if cfg.DescriptionBucketURL == "" {
			_ = closer()
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownScheme, u.Scheme)
		}
	default:
		_ = closer()
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownScheme, u.Scheme)
	}
	return rd, closer, nil
}

func newProvider(
	cfg *config.Config, rd reader.Reader, sched catalog.TaskScheduler,
	logger *slog.Logger,
) (*catalog.Provider, error) {
	return catalog.NewProvider(catalog.Options{
		Reader:      rd,
		Scheduler:   sched,
		Logger:      logger,
		ServiceURL:  cfg.ServiceURL,
		OpenAPIPath: cfg.OpenAPIPath,
		Owner:       cfg.Owner,
		Env:         cfg.Env,
		Frequency:   cfg.RefreshFrequency,
		Timeout:     cfg.RefreshTimeout,
	})
}

func openSinks(ctx context.Context, cfg *config.Config) (*sinks, error) {
	res := &sinks{
		redis: redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Addr,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		}),
	}

	store, err := catalog.NewRedisStore(res.redis, cfg.Store.Prefix)
	if err == nil {
		err = store.Ping(ctx)
	}
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("%w: %w", ErrCreateStore, err)
	}
	res.store = store

	if cfg.Archive.BucketURL != "" {
		a, err := archive.Open(ctx, cfg.Archive.BucketURL, cfg.Archive.Prefix)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("%w: %w", ErrOpenArchive, err)
		}
		res.archive = a
	}
	return res, nil
}

// list returns the configured sinks in the order mutations reach them.
// Extra sinks are appended after the store and archive
func (s *sinks) list(extra ...catalog.Sink) []catalog.Sink {
	res := []catalog.Sink{s.store}
	if s.archive != nil {
		res = append(res, s.archive)
	}
	return append(res, extra...)
}

func (s *sinks) Close() error {
	var errs []error
	if s.archive != nil {
		errs = append(errs, s.archive.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
