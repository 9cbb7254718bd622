package memory

import (
	"context"
	"errors"
	"maps"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
)

// Name is the identifier reported by Service.Name.
const Name = "memory"

// ErrDirectoryNotEmpty is returned when deleting a directory that still has children.
var ErrDirectoryNotEmpty = errors.New("directory not empty")

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	created     time.Time
}

// Service is an in-memory stash.Service.
// Thread-safe for concurrent reads and writes.
type Service struct {
	mu       sync.RWMutex
	objects  map[string]*object
	resolver contenttype.Resolver
	logger   *stash.Logger
	now      func() time.Time
}

var _ stash.Service = (*Service)(nil)

// Option configures the memory Service.
type Option func(*Service)

// WithResolver sets the content-type resolver used when an upload has none.
func WithResolver(r contenttype.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *stash.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new in-memory service.
func New(optFns ...Option) *Service {
	s := &Service{
		objects:  make(map[string]*object),
		resolver: contenttype.New(),
		logger:   stash.NoopLogger(),
		now:      time.Now,
	}
	for _, fn := range optFns {
		fn(s)
	}
	s.logger = s.logger.WithService(Name)
	return s
}

// Name implements stash.Service.
func (s *Service) Name() string { return Name }

// Init is a no-op.
func (s *Service) Init(ctx context.Context) error {
	return ctx.Err()
}

// Healthcheck always succeeds.
func (s *Service) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored objects.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// key maps a caller path to a map key.
func key(p string) string {
	p = strings.TrimPrefix(p, stash.SchemeMemory+"://")
	p = stash.TrimRelative(p)
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

func (s *Service) check(ctx context.Context, op, p string) error {
	if err := ctx.Err(); err != nil {
		return stash.NewError(Name, op, p, stash.KindTransient, err)
	}
	return stash.ValidatePath(Name, op, p)
}

// hasChildrenLocked reports whether k is an implied directory.
func (s *Service) hasChildrenLocked(k string) bool {
	prefix := k + "/"
	if k == "" {
		prefix = ""
	}
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) && name != k {
			return true
		}
	}
	return false
}

// Open implements stash.Service.
func (s *Service) Open(ctx context.Context, p string) ([]byte, bool, error) {
	if err := s.check(ctx, stash.OpOpen, p); err != nil {
		return nil, false, err
	}
	k := key(p)

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[k]
	if !ok {
		if s.hasChildrenLocked(k) {
			return nil, false, stash.NewError(Name, stash.OpOpen, k, stash.KindIsDirectory, stash.ErrIsDirectory)
		}
		return nil, false, nil
	}

	// Return a copy to prevent external mutation
	copied := make([]byte, len(obj.data))
	copy(copied, obj.data)
	return copied, true, nil
}

// Blob implements stash.Service.
func (s *Service) Blob(ctx context.Context, p string) (stash.Blob, bool, error) {
	if err := s.check(ctx, stash.OpBlob, p); err != nil {
		return nil, false, err
	}
	k := key(p)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if obj, ok := s.objects[k]; ok {
		return toFile(k, obj), true, nil
	}
	if s.hasChildrenLocked(k) {
		return &stash.Directory{Name: path.Base(k), Path: stash.FormatPath(stash.SchemeMemory, k)}, true, nil
	}
	return nil, false, nil
}

// Blobs implements stash.Service. Only direct children of path are listed.
func (s *Service) Blobs(ctx context.Context, p string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	if err := s.check(ctx, stash.OpBlobs, p); err != nil {
		return nil, err
	}

	dir := path.Join(key(p), req.PrefixOrEmpty())
	prefix := ""
	if dir != "" && dir != "." {
		prefix = dir + "/"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	blobs := []stash.Blob{}
	seenDirs := map[string]struct{}{}
	for _, name := range names {
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			d := rest[:i]
			if _, seen := seenDirs[d]; seen {
				continue
			}
			seenDirs[d] = struct{}{}
			if req.AcceptsDir(d) {
				blobs = append(blobs, &stash.Directory{Name: d, Path: stash.FormatPath(stash.SchemeMemory, prefix+d)})
			}
			continue
		}
		if !req.AcceptsFile(rest) {
			continue
		}
		blobs = append(blobs, toFile(name, s.objects[name]))
	}
	return blobs, nil
}

// Delete implements stash.Service. Implied directories with children cannot be deleted.
func (s *Service) Delete(ctx context.Context, p string) error {
	if err := s.check(ctx, stash.OpDelete, p); err != nil {
		return err
	}
	k := key(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[k]; !ok && s.hasChildrenLocked(k) {
		return stash.NewError(Name, stash.OpDelete, k, stash.KindIO, ErrDirectoryNotEmpty)
	}
	delete(s.objects, k)
	return nil
}

// Exists implements stash.Service.
func (s *Service) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.check(ctx, stash.OpExists, p); err != nil {
		return false, err
	}
	k := key(p)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[k]; ok {
		return true, nil
	}
	return s.hasChildrenLocked(k), nil
}

// Upload implements stash.Service.
func (s *Service) Upload(ctx context.Context, p string, req stash.UploadRequest) error {
	if err := s.check(ctx, stash.OpUpload, p); err != nil {
		return err
	}
	k := key(p)
	if k == "" {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	ct := req.ContentType
	if ct == "" {
		ct = s.resolver.Resolve(req.Data)
	}

	// Copy to prevent external mutation
	copied := make([]byte, len(req.Data))
	copy(copied, req.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[k]; exists {
		s.logger.LogSkipped(ctx, k)
		return nil
	}
	if s.hasChildrenLocked(k) {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindIsDirectory, stash.ErrIsDirectory)
	}
	for dir := path.Dir(k); dir != "."; dir = path.Dir(dir) {
		if _, isFile := s.objects[dir]; isFile {
			return stash.NewError(Name, stash.OpUpload, p, stash.KindNotADirectory, stash.ErrNotADirectory)
		}
	}
	s.objects[k] = &object{
		data:        copied,
		contentType: ct,
		metadata:    maps.Clone(req.Metadata),
		created:     s.now(),
	}
	return nil
}

func toFile(k string, obj *object) *stash.File {
	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	f := stash.NewFile(path.Base(k), stash.FormatPath(stash.SchemeMemory, k), data)
	f.ContentType = obj.contentType
	f.CreatedAt = obj.created
	f.LastModifiedAt = obj.created
	maps.Copy(f.Metadata, obj.metadata)
	return f
}
