package compress

import (
	"context"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
)

// Name is the service identifier used in errors raised by this package.
const Name = "compress"

// Option configures a Service.
type Option func(*options)

type options struct {
	codec    Codec
	level    zstd.EncoderLevel
	resolver contenttype.Resolver
	logger   *stash.Logger
}

// WithCodec selects the codec for uploads. Reads handle every codec.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLevel sets the zstd encoder level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(o *options) { o.level = level }
}

// WithResolver sets the resolver used for content types of raw payloads.
func WithResolver(r contenttype.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *stash.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Service compresses payloads on upload and decompresses them on read.
type Service struct {
	inner    stash.Service
	codec    Codec
	level    zstd.EncoderLevel
	resolver contenttype.Resolver
	logger   *stash.Logger
}

var (
	_ stash.Service       = (*Service)(nil)
	_ stash.HealthChecker = (*Service)(nil)
)

// New wraps inner. The default codec is Zstd.
func New(inner stash.Service, optFns ...Option) *Service {
	o := options{
		codec:    Zstd,
		level:    zstd.SpeedDefault,
		resolver: contenttype.New(),
		logger:   stash.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return &Service{
		inner:    inner,
		codec:    o.codec,
		level:    o.level,
		resolver: o.resolver,
		logger:   o.logger.WithService(inner.Name()),
	}
}

// Unwrap returns the decorated service.
func (s *Service) Unwrap() stash.Service { return s.inner }

// Codec returns the codec used for uploads.
func (s *Service) Codec() Codec { return s.codec }

// Level returns the zstd encoder level.
func (s *Service) Level() zstd.EncoderLevel { return s.level }

// Name returns the name of the decorated service.
func (s *Service) Name() string { return s.inner.Name() }

// Init implements stash.Service.
func (s *Service) Init(ctx context.Context) error { return s.inner.Init(ctx) }

// Healthcheck implements stash.HealthChecker.
func (s *Service) Healthcheck(ctx context.Context) error { return stash.Healthcheck(ctx, s.inner) }

// Delete implements stash.Service.
func (s *Service) Delete(ctx context.Context, p string) error { return s.inner.Delete(ctx, p) }

// Exists implements stash.Service.
func (s *Service) Exists(ctx context.Context, p string) (bool, error) { return s.inner.Exists(ctx, p) }

// Open implements stash.Service.
func (s *Service) Open(ctx context.Context, p string) ([]byte, bool, error) {
	data, ok, err := s.inner.Open(ctx, p)
	if err != nil || !ok {
		return data, ok, err
	}
	raw, _, err := Decode(data)
	if err != nil {
		return nil, false, stash.NewError(Name, stash.OpOpen, p, stash.KindIO, err)
	}
	return raw, true, nil
}

// Blob implements stash.Service.
func (s *Service) Blob(ctx context.Context, p string) (stash.Blob, bool, error) {
	b, ok, err := s.inner.Blob(ctx, p)
	if err != nil || !ok {
		return b, ok, err
	}
	if f, isFile := b.(*stash.File); isFile {
		if err := s.decodeFile(f); err != nil {
			return nil, false, stash.NewError(Name, stash.OpBlob, p, stash.KindIO, err)
		}
	}
	return b, true, nil
}

// Blobs implements stash.Service. Undecodable files are dropped with a warning.
func (s *Service) Blobs(ctx context.Context, p string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	blobs, err := s.inner.Blobs(ctx, p, req)
	if err != nil {
		return nil, err
	}
	out := blobs[:0]
	for _, b := range blobs {
		if f, isFile := b.(*stash.File); isFile {
			if err := s.decodeFile(f); err != nil {
				s.logger.WarnContext(ctx, "skipping undecodable file", "path", f.Path, "error", err)
				continue
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// Upload implements stash.Service. The content type is resolved on the
// uncompressed payload when req carries none.
func (s *Service) Upload(ctx context.Context, p string, req stash.UploadRequest) error {
	ct := req.ContentType
	if ct == "" {
		ct = s.resolver.Resolve(req.Data)
	}
	framed, err := Encode(req.Data, s.codec, s.level)
	if err != nil {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindInvalidInput, err)
	}
	return s.inner.Upload(ctx, p, req.WithData(framed).WithContentType(ct))
}

// decodeFile replaces f.Data with the decoded payload. A content type the
// backend derived from the framed bytes is resolved again on the raw data.
func (s *Service) decodeFile(f *stash.File) error {
	raw, framed, err := Decode(f.Data)
	if err != nil {
		return err
	}
	if !framed {
		return nil
	}
	if f.ContentType == "" || f.ContentType == s.resolver.Resolve(f.Data) {
		f.ContentType = s.resolver.Resolve(raw)
	}
	f.Data = raw
	f.Size = int64(len(raw))
	return nil
}
