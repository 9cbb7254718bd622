package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	ifs "github.com/hupe1980/stash/internal/fs"
	"github.com/hupe1980/stash/resource"
)

// Name is the identifier reported by Service.Name.
const Name = "filesystem"

// Service implements stash.Service for the local filesystem.
type Service struct {
	root        string
	fs          ifs.FileSystem
	resolver    contenttype.Resolver
	logger      *stash.Logger
	rc          *resource.Controller
	concurrency int
}

var (
	_ stash.Service       = (*Service)(nil)
	_ stash.HealthChecker = (*Service)(nil)
)

// New creates a filesystem service rooted at directory.
func New(directory string, optFns ...Option) (*Service, error) {
	return NewWithConfig(Config{Directory: directory}, optFns...)
}

// NewWithConfig creates a filesystem service from cfg.
func NewWithConfig(cfg Config, optFns ...Option) (*Service, error) {
	if cfg.Directory == "" {
		return nil, stash.NewError(Name, "new", "", stash.KindInvalidInput, errors.New("directory is required"))
	}

	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	concurrency := o.concurrency
	if concurrency < 1 {
		concurrency = o.controller.MaxConcurrentReads()
	}

	return &Service{
		root:        cfg.Directory,
		fs:          o.fs,
		resolver:    o.resolver,
		logger:      o.logger.WithService(Name),
		rc:          o.controller,
		concurrency: concurrency,
	}, nil
}

// Name implements stash.Service.
func (s *Service) Name() string { return Name }

// Root returns the configured root directory as given.
func (s *Service) Root() string { return s.root }

// Init creates the root directory when it does not exist.
func (s *Service) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.wrap(stash.OpInit, s.root, err)
	}

	root, ok := canonicalize(s.root)
	if !ok {
		return stash.NewError(Name, stash.OpInit, s.root, stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	info, err := s.fs.Stat(root)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return stash.NewError(Name, stash.OpInit, root, stash.KindNotADirectory, stash.ErrNotADirectory)
	case !notFound(err):
		return s.wrap(stash.OpInit, root, err)
	}

	if err := s.fs.MkdirAll(root, 0o755); err != nil {
		return s.wrap(stash.OpInit, root, err)
	}
	s.logger.LogCreated(ctx, "directory", root)
	return nil
}

// Open implements stash.Service. Opening a directory is an error.
func (s *Service) Open(ctx context.Context, path string) ([]byte, bool, error) {
	if err := s.check(ctx, stash.OpOpen, path); err != nil {
		return nil, false, err
	}
	p, ok := s.Normalize(path)
	if !ok {
		return nil, false, nil
	}

	info, err := s.fs.Stat(p)
	if err != nil {
		if notFound(err) {
			return nil, false, nil
		}
		return nil, false, s.wrap(stash.OpOpen, p, err)
	}
	if info.IsDir() {
		return nil, false, stash.NewError(Name, stash.OpOpen, p, stash.KindIsDirectory, stash.ErrIsDirectory)
	}

	data, err := s.read(ctx, p)
	if err != nil {
		if notFound(err) {
			return nil, false, nil
		}
		return nil, false, s.wrap(stash.OpOpen, p, err)
	}
	return data, true, nil
}

// Blob implements stash.Service. A directory yields a *stash.Directory.
func (s *Service) Blob(ctx context.Context, path string) (stash.Blob, bool, error) {
	if err := s.check(ctx, stash.OpBlob, path); err != nil {
		return nil, false, err
	}
	p, ok := s.Normalize(path)
	if !ok {
		return nil, false, nil
	}

	info, err := s.fs.Stat(p)
	if err != nil {
		if notFound(err) {
			return nil, false, nil
		}
		return nil, false, s.wrap(stash.OpBlob, p, err)
	}
	if info.IsDir() {
		return s.directory(p), true, nil
	}

	f, err := s.file(ctx, stash.OpBlob, p, info)
	if err != nil {
		if notFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return f, true, nil
}

// Blobs implements stash.Service. An empty path lists the configured root.
func (s *Service) Blobs(ctx context.Context, path string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	if path == "" {
		path = s.root
	}
	if err := s.check(ctx, stash.OpBlobs, path); err != nil {
		return nil, err
	}

	root, ok := s.Normalize(path)
	if !ok {
		s.logger.DebugContext(ctx, "listing root does not resolve", "path", path)
		return []stash.Blob{}, nil
	}

	scan := filepath.Join(root, req.PrefixOrEmpty())
	if isDir, err := s.isDir(scan); err != nil {
		return nil, s.wrap(stash.OpBlobs, scan, err)
	} else if !isDir {
		return []stash.Blob{}, nil
	}

	entries, err := s.fs.ReadDir(scan)
	if err != nil {
		return nil, s.wrap(stash.OpBlobs, scan, err)
	}

	results := make([]stash.Blob, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, entry := range entries {
		full := filepath.Join(scan, entry.Name())

		info, err := s.fs.Stat(full)
		if err != nil {
			if notFound(err) {
				s.logger.WarnContext(ctx, "skipping dangling entry", "path", full)
				continue
			}
			_ = g.Wait()
			return nil, s.wrap(stash.OpBlobs, full, err)
		}

		if info.IsDir() {
			if req.AcceptsDir(entry.Name()) {
				results[i] = s.directory(full)
			}
			continue
		}

		if !req.AcceptsFile(entry.Name()) {
			continue
		}

		g.Go(func() error {
			if err := s.rc.AcquireRead(gctx); err != nil {
				return s.wrap(stash.OpBlobs, full, err)
			}
			defer s.rc.ReleaseRead()

			f, err := s.file(gctx, stash.OpBlobs, full, info)
			if err != nil {
				if notFound(err) {
					return nil
				}
				return err
			}
			results[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	blobs := make([]stash.Blob, 0, len(results))
	for _, b := range results {
		if b != nil {
			blobs = append(blobs, b)
		}
	}
	return blobs, nil
}

// Delete implements stash.Service. Directories must be empty.
func (s *Service) Delete(ctx context.Context, path string) error {
	p, err := s.resolve(ctx, stash.OpDelete, path)
	if err != nil {
		return err
	}

	if _, err := s.fs.Lstat(p); err != nil {
		if notFound(err) {
			return nil
		}
		return s.wrap(stash.OpDelete, p, err)
	}

	if err := s.fs.Remove(p); err != nil && !notFound(err) {
		return s.wrap(stash.OpDelete, p, err)
	}
	return nil
}

// Exists implements stash.Service.
func (s *Service) Exists(ctx context.Context, path string) (bool, error) {
	p, err := s.resolve(ctx, stash.OpExists, path)
	if err != nil {
		return false, err
	}

	if _, err := s.fs.Stat(p); err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, s.wrap(stash.OpExists, p, err)
	}
	return true, nil
}

// Upload implements stash.Service. Parent directories are created as needed
// and an existing file is left untouched.
func (s *Service) Upload(ctx context.Context, path string, req stash.UploadRequest) error {
	p, err := s.resolve(ctx, stash.OpUpload, path)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return s.wrap(stash.OpUpload, p, err)
	}

	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			s.logger.LogSkipped(ctx, p)
			return nil
		}
		return s.wrap(stash.OpUpload, p, err)
	}

	w := resource.NewRateLimitedWriter(ctx, f, s.rc)
	if _, err := w.Write(req.Data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(p)
		return s.wrap(stash.OpUpload, p, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(p)
		return s.wrap(stash.OpUpload, p, err)
	}
	return nil
}

// Healthcheck verifies that the root directory is reachable.
func (s *Service) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.wrap(stash.OpHealthcheck, s.root, err)
	}
	root, ok := canonicalize(s.root)
	if !ok {
		return stash.NewError(Name, stash.OpHealthcheck, s.root, stash.KindInvalidInput, stash.ErrInvalidPath)
	}
	info, err := s.fs.Stat(root)
	if err != nil {
		return s.wrap(stash.OpHealthcheck, root, err)
	}
	if !info.IsDir() {
		return stash.NewError(Name, stash.OpHealthcheck, root, stash.KindNotADirectory, stash.ErrNotADirectory)
	}
	return nil
}

// check validates the raw path and the context.
func (s *Service) check(ctx context.Context, op, path string) error {
	if err := ctx.Err(); err != nil {
		return s.wrap(op, path, err)
	}
	return stash.ValidatePath(Name, op, path)
}

// resolve normalizes path for mutating operations, where an unresolvable
// path is an error rather than an absent entry.
func (s *Service) resolve(ctx context.Context, op, path string) (string, error) {
	if err := s.check(ctx, op, path); err != nil {
		return "", err
	}
	p, ok := s.Normalize(path)
	if !ok {
		return "", stash.NewError(Name, op, path, stash.KindInvalidInput, stash.ErrInvalidPath)
	}
	return p, nil
}

func (s *Service) isDir(p string) (bool, error) {
	info, err := s.fs.Stat(p)
	if err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (s *Service) read(ctx context.Context, p string) ([]byte, error) {
	data, err := s.fs.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if err := s.rc.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Service) directory(p string) *stash.Directory {
	return &stash.Directory{
		Name:      filepath.Base(p),
		Path:      stash.FormatPath(stash.SchemeFS, p),
		CreatedAt: birthTime(p),
	}
}

// file reads p and converts it into a *stash.File. info describes the
// symlink target when p is a link.
func (s *Service) file(ctx context.Context, op, p string, info fs.FileInfo) (*stash.File, error) {
	linfo, err := s.fs.Lstat(p)
	if err != nil {
		return nil, s.wrap(op, p, err)
	}

	data, err := s.read(ctx, p)
	if err != nil {
		if notFound(err) {
			return nil, err
		}
		return nil, s.wrap(op, p, err)
	}

	modified := info.ModTime()
	created := birthTime(p)
	if beforeEpoch(modified) || beforeEpoch(created) {
		return nil, stash.NewError(Name, op, p, stash.KindClock, stash.ErrClockSkew)
	}

	f := stash.NewFile(filepath.Base(p), stash.FormatPath(stash.SchemeFS, p), data)
	f.ContentType = s.resolver.Resolve(data)
	f.CreatedAt = created
	f.LastModifiedAt = modified
	f.IsSymlink = linfo.Mode()&fs.ModeSymlink != 0
	return f, nil
}

func beforeEpoch(t time.Time) bool {
	return !t.IsZero() && t.Before(time.Unix(0, 0))
}

// wrap translates an OS error into a *stash.Error.
func (s *Service) wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *stash.Error
	if errors.As(err, &se) {
		return err
	}

	kind := stash.KindIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = stash.KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = stash.KindPermission
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = stash.KindTransient
	case isNotDir(err):
		kind = stash.KindNotADirectory
	}
	return stash.NewError(Name, op, path, kind, err)
}
