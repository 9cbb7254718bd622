package azure

import (
	"context"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Name is the identifier reported by Service.Name.
const Name = "azure"

// Service implements stash.Service on one blob container.
type Service struct {
	client    Client
	container string
	resolver  contenttype.Resolver
	logger    *stash.Logger
	rc        *resource.Controller
}

var (
	_ stash.Service       = (*Service)(nil)
	_ stash.HealthChecker = (*Service)(nil)
)

// New builds an azblob client from cfg.
func New(cfg Config, optFns ...Option) (*Service, error) {
	client, err := cfg.NewClient()
	if err != nil {
		return nil, translateError("new", cfg.Container, err)
	}
	cc := client.ServiceClient().NewContainerClient(cfg.Container)
	return NewWithClient(NewContainerClient(cc), cfg.Container, optFns...)
}

// NewWithClient returns a service for containerName that talks through client.
func NewWithClient(client Client, containerName string, optFns ...Option) (*Service, error) {
	if containerName == "" {
		return nil, configError("container is required")
	}

	o := options{
		resolver: contenttype.New(),
		logger:   stash.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	return &Service{
		client:    client,
		container: containerName,
		resolver:  o.resolver,
		logger:    o.logger.WithService(Name),
		rc:        o.controller,
	}, nil
}

// Name implements stash.Service.
func (s *Service) Name() string { return Name }

func (s *Service) blobName(p string) string {
	p = strings.TrimPrefix(p, stash.SchemeAzure+"://"+s.container+"/")
	n := path.Clean("/" + stash.TrimRelative(p))
	return strings.TrimPrefix(n, "/")
}

func (s *Service) blobPath(name string) string {
	return stash.FormatPath(stash.SchemeAzure, s.container+"/"+name)
}

func (s *Service) check(ctx context.Context, op, p string) error {
	if err := ctx.Err(); err != nil {
		return translateError(op, p, err)
	}
	return stash.ValidatePath(Name, op, p)
}

// Init creates the container. An existing container is not an error.
func (s *Service) Init(ctx context.Context) error {
	if err := s.client.CreateContainer(ctx); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return translateError(stash.OpInit, s.container, err)
	}
	s.logger.LogCreated(ctx, "container", s.container)
	return nil
}

// Healthcheck fetches the container properties.
func (s *Service) Healthcheck(ctx context.Context) error {
	return translateError(stash.OpHealthcheck, s.container, s.client.ContainerProperties(ctx))
}

// Open implements stash.Service.
func (s *Service) Open(ctx context.Context, p string) ([]byte, bool, error) {
	if err := s.check(ctx, stash.OpOpen, p); err != nil {
		return nil, false, err
	}
	name := s.blobName(p)

	f, err := s.fetch(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, translateError(stash.OpOpen, name, err)
	}
	return f.Data, true, nil
}

// Blob implements stash.Service. A virtual directory yields a *stash.Directory.
func (s *Service) Blob(ctx context.Context, p string) (stash.Blob, bool, error) {
	if err := s.check(ctx, stash.OpBlob, p); err != nil {
		return nil, false, err
	}
	name := s.blobName(p)

	f, err := s.fetch(ctx, name)
	if err == nil {
		return f, true, nil
	}
	if !isNotFound(err) {
		return nil, false, translateError(stash.OpBlob, name, err)
	}
	if name == "" {
		return nil, false, nil
	}

	l, err := s.client.List(ctx, name+"/")
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, translateError(stash.OpBlob, name, err)
	}
	if len(l.Prefixes) == 0 && len(l.Names) == 0 {
		return nil, false, nil
	}
	return &stash.Directory{Name: path.Base(name), Path: s.blobPath(name)}, true, nil
}

// Blobs implements stash.Service.
func (s *Service) Blobs(ctx context.Context, p string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	if err := s.check(ctx, stash.OpBlobs, p); err != nil {
		return nil, err
	}

	prefix := s.blobName(path.Join(p, req.PrefixOrEmpty()))
	if prefix != "" {
		prefix += "/"
	}

	l, err := s.client.List(ctx, prefix)
	if err != nil {
		if isNotFound(err) {
			return []stash.Blob{}, nil
		}
		return nil, translateError(stash.OpBlobs, prefix, err)
	}

	var dirs []stash.Blob
	for _, full := range l.Prefixes {
		dn := path.Base(full)
		if req.AcceptsDir(dn) {
			dirs = append(dirs, &stash.Directory{Name: dn, Path: s.blobPath(full)})
		}
	}

	var names []string
	for _, n := range l.Names {
		if req.AcceptsFile(path.Base(n)) {
			names = append(names, n)
		}
	}

	files := make([]*stash.File, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rc.MaxConcurrentReads())
	for i, n := range names {
		g.Go(func() error {
			if err := s.rc.AcquireRead(gctx); err != nil {
				return translateError(stash.OpBlobs, n, err)
			}
			defer s.rc.ReleaseRead()

			f, err := s.fetch(gctx, n)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return translateError(stash.OpBlobs, n, err)
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
	name := s.blobName(p)

	if err := s.client.Delete(ctx, name); err != nil && !isNotFound(err) {
		return translateError(stash.OpDelete, name, err)
	}
	return nil
}

// Exists implements stash.Service.
func (s *Service) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.check(ctx, stash.OpExists, p); err != nil {
		return false, err
	}
	name := s.blobName(p)
	if name == "" {
		return false, nil
	}

	err := s.client.Stat(ctx, name)
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, translateError(stash.OpExists, name, err)
	}

	l, err := s.client.List(ctx, name+"/")
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, translateError(stash.OpExists, name, err)
	}
	return len(l.Prefixes) > 0 || len(l.Names) > 0, nil
}

// Upload implements stash.Service. The write carries If-None-Match: *, so an
// existing blob is left untouched.
func (s *Service) Upload(ctx context.Context, p string, req stash.UploadRequest) error {
	if err := s.check(ctx, stash.OpUpload, p); err != nil {
		return err
	}
	name := s.blobName(p)
	if name == "" {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	ct := req.ContentType
	if ct == "" {
		ct = s.resolver.Resolve(req.Data)
	}

	if err := s.rc.AcquireIO(ctx, len(req.Data)); err != nil {
		return translateError(stash.OpUpload, name, err)
	}

	if err := s.client.Upload(ctx, name, req.Data, ct, req.Metadata); err != nil {
		if isConflict(err) {
			s.logger.LogSkipped(ctx, name)
			return nil
		}
		return translateError(stash.OpUpload, name, err)
	}
	return nil
}

// fetch downloads name. Errors are returned untranslated.
func (s *Service) fetch(ctx context.Context, name string) (*stash.File, error) {
	if name == "" {
		return nil, notFoundError()
	}

	obj, err := s.client.Download(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Body.Close() }()

	data, err := resource.ReadAll(ctx, obj.Body, s.rc)
	if err != nil {
		return nil, err
	}

	f := stash.NewFile(path.Base(name), s.blobPath(name), data)
	f.ContentType = obj.ContentType
	if f.ContentType == "" {
		f.ContentType = s.resolver.Resolve(data)
	}
	f.CreatedAt = obj.CreatedAt
	f.LastModifiedAt = obj.LastModified
	for k, v := range obj.Metadata {
		f.Metadata[k] = v
	}
	return f, nil
}
