package gridfs

import (
	"bytes"
	"context"
	"io"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mopts "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Bucket is the GridFS API used by Service. Find results are raw files
// collection documents so that conversion failures surface per document.
type Bucket interface {
	// FindByName returns the files documents with exactly this filename.
	FindByName(ctx context.Context, name string) ([]bson.Raw, error)
	// FindByPrefix returns the files documents whose filename starts with prefix.
	FindByPrefix(ctx context.Context, prefix string) ([]bson.Raw, error)
	Download(ctx context.Context, id any, w io.Writer) error
	Upload(ctx context.Context, name string, r io.Reader, metadata bson.M) error
	Delete(ctx context.Context, id any) error
	Ping(ctx context.Context) error
}

// DriverBucket implements Bucket with the MongoDB driver.
type DriverBucket struct {
	db        *mongo.Database
	bucket    *mongo.GridFSBucket
	chunkSize int32
}

var _ Bucket = (*DriverBucket)(nil)

// NewDriverBucket opens the GridFS bucket described by cfg in db.
func NewDriverBucket(db *mongo.Database, cfg Config) *DriverBucket {
	cfg = cfg.withDefaults()
	return &DriverBucket{
		db: db,
		bucket: db.GridFSBucket(mopts.GridFSBucket().
			SetName(cfg.Bucket).
			SetChunkSizeBytes(cfg.ChunkSize)),
		chunkSize: cfg.ChunkSize,
	}
}

func (b *DriverBucket) FindByName(ctx context.Context, name string) ([]bson.Raw, error) {
	return b.find(ctx, bson.D{{Key: "filename", Value: name}})
}

func (b *DriverBucket) FindByPrefix(ctx context.Context, prefix string) ([]bson.Raw, error) {
	filter := bson.D{}
	if prefix != "" {
		filter = bson.D{{Key: "filename", Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}}
	}
	return b.find(ctx, filter)
}

func (b *DriverBucket) find(ctx context.Context, filter any) ([]bson.Raw, error) {
	cur, err := b.bucket.Find(ctx, filter, mopts.GridFSFind().SetSort(bson.D{{Key: "filename", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []bson.Raw
	for cur.Next(ctx) {
		// Current is reused by the cursor.
		docs = append(docs, bson.Raw(bytes.Clone(cur.Current)))
	}
	return docs, cur.Err()
}

func (b *DriverBucket) Download(ctx context.Context, id any, w io.Writer) error {
	_, err := b.bucket.DownloadToStream(ctx, id, w)
	return err
}

func (b *DriverBucket) Upload(ctx context.Context, name string, r io.Reader, metadata bson.M) error {
	_, err := b.bucket.UploadFromStream(ctx, name, r, mopts.GridFSUpload().
		SetMetadata(metadata).
		SetChunkSizeBytes(b.chunkSize))
	return err
}

func (b *DriverBucket) Delete(ctx context.Context, id any) error {
	return b.bucket.Delete(ctx, id)
}

func (b *DriverBucket) Ping(ctx context.Context) error {
	return b.db.Client().Ping(ctx, readpref.Primary())
}
