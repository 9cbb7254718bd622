package gridfs

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type fakeFile struct {
	id   bson.ObjectID
	doc  bson.Raw
	name string
	data []byte
}

// fakeBucket is an in-memory Bucket storing real files collection documents.
type fakeBucket struct {
	mu      sync.Mutex
	files   []fakeFile
	pingErr error
}

var _ Bucket = (*fakeBucket)(nil)

// put stores a file with an explicit files document.
func (b *fakeBucket) put(name string, data []byte, doc bson.D) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	id := bson.NewObjectID()
	if v, ok := bson.Raw(raw).Lookup("_id").ObjectIDOK(); ok {
		id = v
	}
	b.files = append(b.files, fakeFile{id: id, doc: raw, name: name, data: data})
}

func (b *fakeBucket) find(match func(string) bool) []bson.Raw {
	var hits []fakeFile
	for _, f := range b.files {
		if match(f.name) {
			hits = append(hits, f)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].name < hits[j].name })
	out := make([]bson.Raw, len(hits))
	for i, f := range hits {
		out[i] = f.doc
	}
	return out
}

func (b *fakeBucket) FindByName(_ context.Context, name string) ([]bson.Raw, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(func(n string) bool { return n == name }), nil
}

func (b *fakeBucket) FindByPrefix(_ context.Context, prefix string) ([]bson.Raw, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.find(func(n string) bool { return strings.HasPrefix(n, prefix) }), nil
}

func (b *fakeBucket) Download(_ context.Context, id any, w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.files {
		if f.id == id {
			_, err := io.Copy(w, bytes.NewReader(f.data))
			return err
		}
	}
	return mongo.ErrFileNotFound
}

func (b *fakeBucket) Upload(_ context.Context, name string, r io.Reader, metadata bson.M) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.put(name, data, bson.D{
		{Key: "_id", Value: bson.NewObjectID()},
		{Key: "length", Value: int64(len(data))},
		{Key: "chunkSize", Value: int32(DefaultChunkSize)},
		{Key: "uploadDate", Value: bson.NewDateTimeFromTime(time.Now())},
		{Key: "filename", Value: name},
		{Key: "metadata", Value: metadata},
	})
	return nil
}

func (b *fakeBucket) Delete(_ context.Context, id any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, f := range b.files {
		if f.id == id {
			b.files = append(b.files[:i], b.files[i+1:]...)
			return nil
		}
	}
	return mongo.ErrFileNotFound
}

func (b *fakeBucket) Ping(context.Context) error {
	return b.pingErr
}
