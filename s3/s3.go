package s3

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Name is the identifier reported by Service.Name.
const Name = "s3"

// Service implements stash.Service for S3.
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

// New builds an SDK client from cfg and returns the service.
func New(ctx context.Context, cfg Config, optFns ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	awsCfg, err := cfg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, stash.NewError(Name, "new", "", stash.KindInvalidInput, err)
	}
	return NewWithClient(s3.NewFromConfig(awsCfg, cfg.clientOptions), cfg, optFns...)
}

// NewWithClient returns a service that uses client for every call.
func NewWithClient(client Client, cfg Config, optFns ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
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
		cfg:      cfg.withDefaults(),
		resolver: o.resolver,
		logger:   o.logger.WithService(Name),
		rc:       o.controller,
	}, nil
}

// Name implements stash.Service.
func (s *Service) Name() string { return Name }

// Bucket returns the configured bucket.
func (s *Service) Bucket() string { return s.cfg.Bucket }

// key maps a caller path to an object key. Paths in "s3://bucket/key" form
// are accepted.
func (s *Service) key(p string) string {
	p = strings.TrimPrefix(p, stash.SchemeS3+"://"+s.cfg.Bucket+"/")
	p = stash.TrimRelative(p)
	k := path.Join(s.cfg.Prefix, p)
	k = strings.TrimPrefix(k, "/")
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
	if err := ctx.Err(); err != nil {
		return translateError(stash.OpInit, s.cfg.Bucket, err)
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return translateError(stash.OpInit, s.cfg.Bucket, err)
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
		ACL:    types.BucketCannedACL(s.cfg.DefaultBucketACL),
	}
	if s.cfg.Region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.cfg.Region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if isBucketOwned(err) {
			return nil
		}
		return translateError(stash.OpInit, s.cfg.Bucket, err)
	}
	s.logger.LogCreated(ctx, "bucket", s.cfg.Bucket)
	return nil
}

// Healthcheck verifies that the bucket is reachable.
func (s *Service) Healthcheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	return translateError(stash.OpHealthcheck, s.cfg.Bucket, err)
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

// Blob implements stash.Service. A key that only exists as a prefix of
// other keys yields a *stash.Directory.
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

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.cfg.Bucket),
		Prefix:  aws.String(k + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, false, translateError(stash.OpBlob, k, err)
	}
	if len(out.Contents) == 0 {
		return nil, false, nil
	}
	return &stash.Directory{Name: path.Base(k), Path: s.blobPath(k)}, true, nil
}

// Blobs implements stash.Service. Listing is one level deep; common
// prefixes are reported as directories.
func (s *Service) Blobs(ctx context.Context, p string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	if err := s.check(ctx, stash.OpBlobs, p); err != nil {
		return nil, err
	}

	dir := s.key(path.Join(p, req.PrefixOrEmpty()))
	listPrefix := ""
	if dir != "" {
		listPrefix = dir + "/"
	}

	var (
		dirs []stash.Blob
		keys []string
	)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.cfg.Bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return []stash.Blob{}, nil
			}
			return nil, translateError(stash.OpBlobs, listPrefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			full := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			name := path.Base(full)
			if req.AcceptsDir(name) {
				dirs = append(dirs, &stash.Directory{Name: name, Path: s.blobPath(full)})
			}
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if k == listPrefix || strings.HasSuffix(k, "/") {
				continue
			}
			if req.AcceptsFile(path.Base(k)) {
				keys = append(keys, k)
			}
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

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(k),
	})
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
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, translateError(stash.OpExists, k, err)
	}
	return true, nil
}

// Upload implements stash.Service. Writes are conditional on the key being
// absent unless DisableConditionalWrites is set, in which case a HEAD
// request guards the write.
func (s *Service) Upload(ctx context.Context, p string, req stash.UploadRequest) error {
	if err := s.check(ctx, stash.OpUpload, p); err != nil {
		return err
	}
	k := s.key(p)
	if k == "" {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	if s.cfg.DisableConditionalWrites {
		exists, err := s.exists(ctx, k)
		if err != nil {
			return err
		}
		if exists {
			s.logger.LogSkipped(ctx, k)
			return nil
		}
	}

	ct := req.ContentType
	if ct == "" {
		ct = s.resolver.Resolve(req.Data)
	}

	if err := s.rc.AcquireIO(ctx, len(req.Data)); err != nil {
		return translateError(stash.OpUpload, k, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(req.Data),
		ContentLength: aws.Int64(int64(len(req.Data))),
		ContentType:   aws.String(ct),
		Metadata:      req.Metadata,
	}
	if !s.cfg.DisableConditionalWrites {
		input.IfNoneMatch = aws.String("*")
	}
	if s.cfg.DefaultObjectACL != "" {
		input.ACL = types.ObjectCannedACL(s.cfg.DefaultObjectACL)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isConflict(err) {
			s.logger.LogSkipped(ctx, k)
			return nil
		}
		return translateError(stash.OpUpload, k, err)
	}
	return nil
}

// fetch downloads k and converts it into a *stash.File. Errors are returned
// untranslated so callers can test for not-found.
func (s *Service) fetch(ctx context.Context, k string) (*stash.File, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()

	data, err := resource.ReadAll(ctx, out.Body, s.rc)
	if err != nil {
		return nil, err
	}

	f := stash.NewFile(path.Base(k), s.blobPath(k), data)
	f.ContentType = aws.ToString(out.ContentType)
	if f.ContentType == "" {
		f.ContentType = s.resolver.Resolve(data)
	}
	f.LastModifiedAt = aws.ToTime(out.LastModified)
	for mk, mv := range out.Metadata {
		f.Metadata[mk] = mv
	}
	return f, nil
}
