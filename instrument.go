package stash

import (
	"context"
	"time"
)

// Instrument wraps svc so that every operation is logged and recorded.
// The returned Service also implements HealthChecker.
func Instrument(svc Service, optFns ...Option) Service {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return &instrumented{
		inner:   svc,
		logger:  o.logger.WithService(svc.Name()),
		metrics: o.metricsCollector,
	}
}

type instrumented struct {
	inner   Service
	logger  *Logger
	metrics MetricsCollector
}

// Unwrap returns the decorated service.
func (s *instrumented) Unwrap() Service { return s.inner }

func (s *instrumented) Name() string { return s.inner.Name() }

func (s *instrumented) observe(ctx context.Context, op, path string, start time.Time, err error) {
	d := time.Since(start)
	s.metrics.RecordOp(s.inner.Name(), op, d, err)
	s.logger.LogOp(ctx, op, path, d, err)
}

func (s *instrumented) Init(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe(ctx, OpInit, "", start, err) }(time.Now())
	return s.inner.Init(ctx)
}

func (s *instrumented) Open(ctx context.Context, path string) (data []byte, ok bool, err error) {
	defer func(start time.Time) {
		s.observe(ctx, OpOpen, path, start, err)
		s.metrics.RecordBytes(s.inner.Name(), OpOpen, len(data))
	}(time.Now())
	return s.inner.Open(ctx, path)
}

func (s *instrumented) Blob(ctx context.Context, path string) (b Blob, ok bool, err error) {
	defer func(start time.Time) {
		s.observe(ctx, OpBlob, path, start, err)
		if f, isFile := b.(*File); isFile {
			s.metrics.RecordBytes(s.inner.Name(), OpBlob, len(f.Data))
		}
	}(time.Now())
	return s.inner.Blob(ctx, path)
}

func (s *instrumented) Blobs(ctx context.Context, path string, req *ListBlobsRequest) (blobs []Blob, err error) {
	defer func(start time.Time) { s.observe(ctx, OpBlobs, path, start, err) }(time.Now())
	return s.inner.Blobs(ctx, path, req)
}

func (s *instrumented) Delete(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { s.observe(ctx, OpDelete, path, start, err) }(time.Now())
	return s.inner.Delete(ctx, path)
}

func (s *instrumented) Exists(ctx context.Context, path string) (ok bool, err error) {
	defer func(start time.Time) { s.observe(ctx, OpExists, path, start, err) }(time.Now())
	return s.inner.Exists(ctx, path)
}

func (s *instrumented) Upload(ctx context.Context, path string, req UploadRequest) (err error) {
	defer func(start time.Time) {
		s.observe(ctx, OpUpload, path, start, err)
		if err == nil {
			s.metrics.RecordBytes(s.inner.Name(), OpUpload, len(req.Data))
		}
	}(time.Now())
	return s.inner.Upload(ctx, path, req)
}

func (s *instrumented) Healthcheck(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe(ctx, OpHealthcheck, "", start, err) }(time.Now())
	return Healthcheck(ctx, s.inner)
}
