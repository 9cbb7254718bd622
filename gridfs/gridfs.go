package gridfs

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mopts "go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Name is the identifier reported by Service.Name.
const Name = "gridfs"

// metaContentType is the metadata key that holds the content type.
const metaContentType = "contentType"

// Service implements stash.Service on a GridFS bucket.
type Service struct {
	bucket   Bucket
	client   *mongo.Client
	resolver contenttype.Resolver
	logger   *stash.Logger
	rc       *resource.Controller
}

var (
	_ stash.Service       = (*Service)(nil)
	_ stash.HealthChecker = (*Service)(nil)
)

// New connects to cfg.URI. Close releases the connection.
func New(ctx context.Context, cfg Config, optFns ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	client, err := mongo.Connect(mopts.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, translateError("new", cfg.URI, err)
	}

	svc, err := NewWithDatabase(client.Database(cfg.Database), cfg, optFns...)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	svc.client = client
	return svc, nil
}

// NewWithDatabase opens the bucket in an existing database handle. The
// caller keeps ownership of the client.
func NewWithDatabase(db *mongo.Database, cfg Config, optFns ...Option) (*Service, error) {
	return NewWithBucket(NewDriverBucket(db, cfg), optFns...)
}

// NewWithBucket returns a service backed by bucket.
func NewWithBucket(bucket Bucket, optFns ...Option) (*Service, error) {
	o := options{
		resolver: contenttype.New(),
		logger:   stash.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return &Service{
		bucket:   bucket,
		resolver: o.resolver,
		logger:   o.logger.WithService(Name),
		rc:       o.controller,
	}, nil
}

// Name implements stash.Service.
func (s *Service) Name() string { return Name }

// Close disconnects the client created by New. It is a no-op otherwise.
func (s *Service) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// resolvePath maps a caller path to a GridFS filename.
func resolvePath(p string) string {
	return stash.TrimRelative(strings.TrimPrefix(p, stash.SchemeGridFS+"://"))
}

func (s *Service) check(ctx context.Context, op, p string) error {
	if err := ctx.Err(); err != nil {
		return translateError(op, p, err)
	}
	return stash.ValidatePath(Name, op, p)
}

// Init is a no-op: GridFS creates its collections on first write.
func (s *Service) Init(ctx context.Context) error {
	return s.check(ctx, stash.OpInit, "")
}

// Healthcheck pings the primary.
func (s *Service) Healthcheck(ctx context.Context) error {
	return translateError(stash.OpHealthcheck, "", s.bucket.Ping(ctx))
}

// fileDoc is a GridFS files collection document.
type fileDoc struct {
	ID         any           `bson:"_id"`
	Length     int64         `bson:"length"`
	UploadDate bson.DateTime `bson:"uploadDate"`
	Filename   string        `bson:"filename"`
	Metadata   bson.M        `bson:"metadata,omitempty"`
}

func decodeFile(raw bson.Raw) (*fileDoc, error) {
	var doc fileDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.ID == nil {
		return nil, errors.New("document has no _id")
	}
	if doc.Filename == "" {
		return nil, errors.New("document has no filename")
	}
	return &doc, nil
}

// lookup returns the first files document named name, or nil.
func (s *Service) lookup(ctx context.Context, name string) (*fileDoc, error) {
	docs, err := s.bucket.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeFile(docs[0])
}

func (s *Service) download(ctx context.Context, doc *fileDoc) ([]byte, error) {
	var buf bytes.Buffer
	if doc.Length > 0 {
		buf.Grow(int(doc.Length))
	}
	w := resource.NewRateLimitedWriter(ctx, &buf, s.rc)
	if err := s.bucket.Download(ctx, doc.ID, w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open implements stash.Service.
func (s *Service) Open(ctx context.Context, p string) ([]byte, bool, error) {
	if err := s.check(ctx, stash.OpOpen, p); err != nil {
		return nil, false, err
	}
	name := resolvePath(p)

	doc, err := s.lookup(ctx, name)
	if err != nil {
		return nil, false, translateError(stash.OpOpen, name, err)
	}
	if doc == nil {
		return nil, false, nil
	}

	data, err := s.download(ctx, doc)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, translateError(stash.OpOpen, name, err)
	}
	return data, true, nil
}

// Blob implements stash.Service.
func (s *Service) Blob(ctx context.Context, p string) (stash.Blob, bool, error) {
	if err := s.check(ctx, stash.OpBlob, p); err != nil {
		return nil, false, err
	}
	name := resolvePath(p)

	doc, err := s.lookup(ctx, name)
	if err != nil {
		return nil, false, translateError(stash.OpBlob, name, err)
	}
	if doc == nil {
		return nil, false, nil
	}

	data, err := s.download(ctx, doc)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, translateError(stash.OpBlob, name, err)
	}
	return s.toFile(ctx, doc, data), true, nil
}

// Blobs implements stash.Service. Files are matched by filename prefix; a
// non-empty path acts as a directory-like prefix ("a" matches "a/x").
func (s *Service) Blobs(ctx context.Context, p string, req *stash.ListBlobsRequest) ([]stash.Blob, error) {
	if err := s.check(ctx, stash.OpBlobs, p); err != nil {
		return nil, err
	}

	prefix := resolvePath(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	prefix += req.PrefixOrEmpty()

	raws, err := s.bucket.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, translateError(stash.OpBlobs, prefix, err)
	}

	var docs []*fileDoc
	for _, raw := range raws {
		doc, err := decodeFile(raw)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable file document", "error", err)
			continue
		}
		if req.AcceptsFile(path.Base(doc.Filename)) {
			docs = append(docs, doc)
		}
	}

	files := make([]*stash.File, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rc.MaxConcurrentReads())
	for i, doc := range docs {
		g.Go(func() error {
			if err := s.rc.AcquireRead(gctx); err != nil {
				return translateError(stash.OpBlobs, doc.Filename, err)
			}
			defer s.rc.ReleaseRead()

			data, err := s.download(gctx, doc)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return translateError(stash.OpBlobs, doc.Filename, err)
			}
			files[i] = s.toFile(gctx, doc, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blobs := make([]stash.Blob, 0, len(files))
	for _, f := range files {
		if f != nil {
			blobs = append(blobs, f)
		}
	}
	return blobs, nil
}

// Delete implements stash.Service. Every revision with the filename is removed.
func (s *Service) Delete(ctx context.Context, p string) error {
	if err := s.check(ctx, stash.OpDelete, p); err != nil {
		return err
	}
	name := resolvePath(p)

	raws, err := s.bucket.FindByName(ctx, name)
	if err != nil {
		return translateError(stash.OpDelete, name, err)
	}
	for _, raw := range raws {
		doc, err := decodeFile(raw)
		if err != nil {
			return translateError(stash.OpDelete, name, err)
		}
		if err := s.bucket.Delete(ctx, doc.ID); err != nil && !isNotFound(err) {
			return translateError(stash.OpDelete, name, err)
		}
	}
	return nil
}

// Exists implements stash.Service.
func (s *Service) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.check(ctx, stash.OpExists, p); err != nil {
		return false, err
	}
	name := resolvePath(p)

	docs, err := s.bucket.FindByName(ctx, name)
	if err != nil {
		return false, translateError(stash.OpExists, name, err)
	}
	return len(docs) > 0, nil
}

// Upload implements stash.Service. An existing filename is left untouched.
func (s *Service) Upload(ctx context.Context, p string, req stash.UploadRequest) error {
	if err := s.check(ctx, stash.OpUpload, p); err != nil {
		return err
	}
	name := resolvePath(p)
	if name == "" {
		return stash.NewError(Name, stash.OpUpload, p, stash.KindInvalidInput, stash.ErrInvalidPath)
	}

	existing, err := s.bucket.FindByName(ctx, name)
	if err != nil {
		return translateError(stash.OpUpload, name, err)
	}
	if len(existing) > 0 {
		s.logger.LogSkipped(ctx, name)
		return nil
	}

	ct := req.ContentType
	if ct == "" {
		ct = s.resolver.Resolve(req.Data)
	}
	meta := bson.M{metaContentType: ct}
	for k, v := range req.Metadata {
		if k != metaContentType {
			meta[k] = v
		}
	}

	r := resource.NewRateLimitedReader(ctx, bytes.NewReader(req.Data), s.rc)
	if err := s.bucket.Upload(ctx, name, r, meta); err != nil {
		return translateError(stash.OpUpload, name, err)
	}
	return nil
}

func (s *Service) toFile(ctx context.Context, doc *fileDoc, data []byte) *stash.File {
	f := stash.NewFile(path.Base(doc.Filename), stash.FormatPath(stash.SchemeGridFS, doc.Filename), data)
	if doc.Length >= 0 && int(doc.Length) != len(data) {
		s.logger.WarnContext(ctx, "file length does not match downloaded bytes",
			"path", f.Path, "length", doc.Length, "downloaded", len(data))
	}

	if ms := int64(doc.UploadDate); ms < 0 {
		s.logger.WarnContext(ctx, "upload date before the epoch", "path", f.Path)
	} else {
		f.CreatedAt = time.UnixMilli(ms).UTC()
	}

	for k, v := range doc.Metadata {
		sv, ok := v.(string)
		if !ok {
			continue
		}
		if k == metaContentType {
			f.ContentType = sv
			continue
		}
		f.Metadata[k] = sv
	}
	if f.ContentType == "" {
		f.ContentType = s.resolver.Resolve(data)
	}
	return f
}
