package minio

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Name is the identifier reported by Service.Name.
const Name = "minio"

// Service implements stash.Service on a MinIO bucket.
type Service struct {
	client   Client
	cfg      Config
	resolver contenttype.Resolver
	logger   *stash.Logger
	rc       *resource.Controller
}

var (
	_ stash.Service       = (*Service)(nil)
	_ stash.HealthChecker = (*Service)(nil)
)

// New connects to cfg.Endpoint.
func New(cfg Config, optFns ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := cfg.NewClient()
	if err != nil {
		return nil, stash.NewError(Name, "new", cfg.Endpoint, stash.KindInvalidInput, err)
	}
	return NewWithClient(Wrap(c), cfg, optFns...)
}

// NewWithClient returns a service backed by client. Only Bucket and Prefix
// of cfg are used.
func NewWithClient(client Client, cfg Config, optFns ...Option) (*Service, error) {
	if cfg.Bucket == "" {
		return nil, stash.NewError(Name, "new", "", stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	o := options{
		resolver: contenttype.New(),
		logger:   stash.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	return &Service{
		client:   client,
		cfg:      cfg,
		resolver: o.resolver,
		logger:   o.logger.WithService(Name),
		rc:       o.controller,
	}, nil
}

// Name implements stash.Service.
func (s *Service) Name() string { return Name }

func (s *Service) key(p string) string {
	p = strings.TrimPrefix(p, stash.SchemeS3+"://"+s.cfg.Bucket+"/")
	k := strings.TrimPrefix(path.Join(s.cfg.Prefix, stash.TrimRelative(p)), "/")
	if k == "." {
		return ""
	}
	return k
}

func (s *Service) blobPath(k string) string {
	return stash.FormatPath(stash.SchemeS3, s.cfg.Bucket+"/"+k)
}

func (s *Service) check(ctx context.Context, op, p string) error {
	if err := ctx.Err(); err != nil {
		return translateError(op, p, err)
	}
	return stash.ValidatePath(Name, op, p)
}

// Init creates the bucket when it does not exist.
func (s *Service) Init(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return translateError(stash.OpInit, s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region})
	if err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return translateError(stash.OpInit, s.cfg.Bucket, err)
	}
	s.logger.LogCreated(ctx, "bucket", s.cfg.Bucket)
	return nil
}

// Healthcheck reports an error unless the bucket exists and is reachable.
func (s *Service) Healthcheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return translateError(stash.OpHealthcheck, s.cfg.Bucket, err)
	}
	if !exists {
		return stash.NewError(Name, stash.OpHealthcheck, s.cfg.Bucket, stash.KindNotFound, minio.ErrorResponse{Code: "NoSuchBucket"})
	}
	return nil
}

// Open implements stash.Service.
func (s *Service) Open(ctx context.Context, p string) ([]byte, bool, error) {
	if err := s.check(ctx, stash.OpOpen, p); err != nil {
		return nil, false, err
	}
	k := s.key(p)

	f, err := s.fetch(ctx, k)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, translateError(stash.OpOpen, k, err)
	}
	return f.Data, true, nil
}

// Blob implements stash.Service.
func (s *Service) Blob(ctx context.Context, p string) (stash.Blob, bool, error) {
	if err := s.check(ctx, stash.OpBlob, p); err != nil {
		return nil, false, err
	}
	k := s.key(p)

	f, err := s.fetch(ctx, k)
	if err == nil {
		return f, true, nil
	}
	if !isNotFound(err) {
		return nil, false, translateError(stash.OpBlob, k, err)
	}

	// Probe for a common prefix.
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.client.ListObjects(lctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: k + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				return nil, false, nil
			}
			return nil, false, translateError(stash.OpBlob, k, obj.Err)
		}
		return &stash.Directory{Name: path.Base(k), Path: s.blobPath(k)}, true, nil
	}
	return nil, false, nil
}

// Blobs implements stash.Service. Listing is non-recursive; keys ending in
// "/" are common prefixes and reported as directories.
func (s *Service) Blobs(ctx context.Context, p string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	if err := s.check(ctx, stash.OpBlobs, p); err != nil {
		return nil, err
	}

	listPrefix := s.key(path.Join(p, req.PrefixOrEmpty()))
	if listPrefix != "" {
		listPrefix += "/"
	}

	var (
		dirs []stash.Blob
		keys []string
	)

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.client.ListObjects(lctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: listPrefix}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				return []stash.Blob{}, nil
			}
			return nil, translateError(stash.OpBlobs, listPrefix, obj.Err)
		}
		if obj.Key == listPrefix {
			continue
		}
		if strings.HasSuffix(obj.Key, "/") {
			full := strings.TrimSuffix(obj.Key, "/")
			name := path.Base(full)
			if req.AcceptsDir(name) {
				dirs = append(dirs, &stash.Directory{Name: name, Path: s.blobPath(full)})
			}
			continue
		}
		if req.AcceptsFile(path.Base(obj.Key)) {
			keys = append(keys, obj.Key)
		}
	}

	files := make([]*stash.File, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rc.MaxConcurrentReads())
	for i, k := range keys {
		g.Go(func() error {
			if err := s.rc.AcquireRead(gctx); err != nil {
				return translateError(stash.OpBlobs, k, err)
			}
			defer s.rc.ReleaseRead()

			f, err := s.fetch(gctx, k)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return translateError(stash.OpBlobs, k, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blobs := make([]stash.Blob, 0, len(dirs)+len(files))
	blobs = append(blobs, dirs...)
	for _, f := range files {
		if f != nil {
			blobs = append(blobs, f)
		}
	}
	return blobs, nil
}

// Delete implements stash.Service.
func (s *Service) Delete(ctx context.Context, p string) error {
	if err := s.check(ctx, stash.OpDelete, p); err != nil {
		return err
	}
	k := s.key(p)

	err := s.client.RemoveObject(ctx, s.cfg.Bucket, k, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return translateError(stash.OpDelete, k, err)
	}
	return nil
}

// Exists implements stash.Service.
func (s *Service) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.check(ctx, stash.OpExists, p); err != nil {
		return false, err
	}
	return s.exists(ctx, s.key(p))
}

func (s *Service) exists(ctx context.Context, k string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, k, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, translateError(stash.OpExists, k, err)
	}
	return true, nil
}

// Upload implements stash.Service.
func (s *Service) Upload(ctx context.Context, p string, req stash.UploadRequest) error {
	if err := s.check(ctx, stash.OpUpload, p); err != nil {
		return err
	}
	k := s.key(p)
	if k == "" {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	exists, err := s.exists(ctx, k)
	if err != nil {
		return err
	}
	if exists {
		s.logger.LogSkipped(ctx, k)
		return nil
	}

	ct := req.ContentType
	if ct == "" {
		ct = s.resolver.Resolve(req.Data)
	}

	if err := s.rc.AcquireIO(ctx, len(req.Data)); err != nil {
		return translateError(stash.OpUpload, k, err)
	}

	_, err = s.client.PutObject(ctx, s.cfg.Bucket, k, bytes.NewReader(req.Data), int64(len(req.Data)), minio.PutObjectOptions{
		ContentType:  ct,
		UserMetadata: req.Metadata,
	})
	return translateError(stash.OpUpload, k, err)
}

// fetch stats and downloads k. Errors are returned untranslated.
func (s *Service) fetch(ctx context.Context, k string) (*stash.File, error) {
	if k == "" {
		return nil, minio.ErrorResponse{Code: "NoSuchKey"}
	}

	info, err := s.client.StatObject(ctx, s.cfg.Bucket, k, minio.StatObjectOptions{})
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Download(ctx, s.cfg.Bucket, k)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := resource.ReadAll(ctx, rc, s.rc)
	if err != nil {
		return nil, err
	}

	f := stash.NewFile(path.Base(k), s.blobPath(k), data)
	f.ContentType = info.ContentType
	if f.ContentType == "" {
		f.ContentType = s.resolver.Resolve(data)
	}
	f.LastModifiedAt = info.LastModified
	for mk, mv := range info.UserMetadata {
		f.Metadata[mk] = mv
	}
	return f, nil
}
