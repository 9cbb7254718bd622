package config

import (
	"context"
	"fmt"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/azure"
	"github.com/hupe1980/stash/compress"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/filesystem"
	"github.com/hupe1980/stash/gridfs"
	"github.com/hupe1980/stash/memory"
	"github.com/hupe1980/stash/minio"
	"github.com/hupe1980/stash/resource"
	"github.com/hupe1980/stash/s3"
)

// NewLogger builds the logger described by l.
func NewLogger(l Logging) *stash.Logger {
	level := stash.ParseLevel(l.Level)
	switch l.Format {
	case FormatJSON:
		return stash.NewJSONLogger(level)
	case FormatNone:
		return stash.NoopLogger()
	default:
		return stash.NewTextLogger(level)
	}
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	logger   *stash.Logger
	metrics  stash.MetricsCollector
	resolver contenttype.Resolver
}

// WithLogger overrides the logger built from Config.Logging.
func WithLogger(l *stash.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithMetricsCollector overrides the default BasicMetricsCollector.
func WithMetricsCollector(mc stash.MetricsCollector) Option {
	return func(o *openOptions) { o.metrics = mc }
}

// WithResolver sets the content-type resolver passed to the backend.
func WithResolver(r contenttype.Resolver) Option {
	return func(o *openOptions) { o.resolver = r }
}

// Store is an opened, instrumented service.
type Store struct {
	stash.Service

	metrics stash.MetricsCollector
	closeFn func(context.Context) error
}

// Metrics returns the collector every operation is recorded to.
func (s *Store) Metrics() stash.MetricsCollector { return s.metrics }

// Healthcheck probes the backend.
func (s *Store) Healthcheck(ctx context.Context) error {
	return stash.Healthcheck(ctx, s.Service)
}

// Close releases backend connections.
func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Open validates cfg and builds the configured backend, wrapped in
// compression when enabled and instrumented with logging and metrics.
func Open(ctx context.Context, cfg Config, optFns ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := openOptions{
		metrics:  &stash.BasicMetricsCollector{},
		resolver: contenttype.New(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.Logging)
	}

	rc := resource.NewController(resource.Config{
		MaxConcurrentReads: cfg.Resources.MaxConcurrentReads,
		IOLimitBytesPerSec: cfg.Resources.IOLimitBytesPerSec,
	})

	svc, closeFn, err := openBackend(ctx, cfg, o, rc)
	if err != nil {
		return nil, err
	}

	codec, _ := compress.ParseCodec(cfg.Compression)
	if codec != compress.None {
		level, _ := compress.ParseLevel(cfg.CompressionLevel)
		svc = compress.New(svc,
			compress.WithCodec(codec),
			compress.WithLevel(level),
			compress.WithResolver(o.resolver),
			compress.WithLogger(o.logger),
		)
	}

	o.logger.Info("storage opened", "backend", cfg.Backend, "service", svc.Name(), "compression", codec.String())

	return &Store{
		Service: stash.Instrument(svc, stash.WithLogger(o.logger), stash.WithMetricsCollector(o.metrics)),
		metrics: o.metrics,
		closeFn: closeFn,
	}, nil
}

func openBackend(ctx context.Context, cfg Config, o openOptions, rc *resource.Controller) (stash.Service, func(context.Context) error, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memory.New(memory.WithResolver(o.resolver), memory.WithLogger(o.logger)), nil, nil
	case BackendFS:
		svc, err := filesystem.NewWithConfig(cfg.Filesystem,
			filesystem.WithResolver(o.resolver),
			filesystem.WithLogger(o.logger),
			filesystem.WithController(rc),
		)
		return svc, nil, err
	case BackendS3:
		svc, err := s3.New(ctx, cfg.S3,
			s3.WithResolver(o.resolver),
			s3.WithLogger(o.logger),
			s3.WithController(rc),
		)
		return svc, nil, err
	case BackendMinIO:
		svc, err := minio.New(cfg.MinIO,
			minio.WithResolver(o.resolver),
			minio.WithLogger(o.logger),
			minio.WithController(rc),
		)
		return svc, nil, err
	case BackendAzure:
		svc, err := azure.New(cfg.Azure,
			azure.WithResolver(o.resolver),
			azure.WithLogger(o.logger),
			azure.WithController(rc),
		)
		return svc, nil, err
	case BackendGridFS:
		svc, err := gridfs.New(ctx, cfg.GridFS,
			gridfs.WithResolver(o.resolver),
			gridfs.WithLogger(o.logger),
			gridfs.WithController(rc),
		)
		if err != nil {
			return nil, nil, err
		}
		return svc, svc.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
}
