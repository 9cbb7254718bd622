package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

// fakeClient is an in-memory Client.
type fakeClient struct {
	mu      sync.Mutex
	buckets map[string]map[string]minio.ObjectInfo
	data    map[string][]byte
	puts    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		buckets: make(map[string]map[string]minio.ObjectInfo),
		data:    make(map[string][]byte),
	}
}

var _ Client = (*fakeClient)(nil)

func noSuchKey() error {
	return minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
}

func noSuchBucket() error {
	return minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}
}

func (c *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.buckets[bucket]
	return ok, nil
}

func (c *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[bucket]; ok {
		return minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou", StatusCode: http.StatusConflict}
	}
	c.buckets[bucket] = make(map[string]minio.ObjectInfo)
	return nil
}

func (c *fakeClient) StatObject(_ context.Context, bucket, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucket]
	if !ok {
		return minio.ObjectInfo{}, noSuchBucket()
	}
	info, ok := b[key]
	if !ok {
		return minio.ObjectInfo{}, noSuchKey()
	}
	return info, nil
}

func (c *fakeClient) Download(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[bucket+"/"+key]
	if !ok {
		return nil, noSuchKey()
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (c *fakeClient) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucket]
	if !ok {
		return minio.UploadInfo{}, noSuchBucket()
	}
	c.puts++
	b[key] = minio.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opts.ContentType,
		LastModified: time.Now().UTC(),
		UserMetadata: opts.UserMetadata,
	}
	c.data[bucket+"/"+key] = data
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (c *fakeClient) RemoveObject(_ context.Context, bucket, key string, _ minio.RemoveObjectOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucket]
	if !ok {
		return noSuchBucket()
	}
	delete(b, key)
	delete(c.data, bucket+"/"+key)
	return nil
}

// ListObjects emits keys directly under opts.Prefix and one entry per
// common prefix, in lexical order.
func (c *fakeClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	c.mu.Lock()
	var out []minio.ObjectInfo
	if b, ok := c.buckets[bucket]; !ok {
		out = append(out, minio.ObjectInfo{Err: noSuchBucket()})
	} else {
		seen := make(map[string]bool)
		for k, info := range b {
			if !strings.HasPrefix(k, opts.Prefix) {
				continue
			}
			rest := k[len(opts.Prefix):]
			if i := strings.Index(rest, "/"); i >= 0 && !opts.Recursive {
				cp := opts.Prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out = append(out, minio.ObjectInfo{Key: cp})
				}
				continue
			}
			out = append(out, info)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		if opts.MaxKeys > 0 && len(out) > opts.MaxKeys {
			out = out[:opts.MaxKeys]
		}
	}
	c.mu.Unlock()

	ch := make(chan minio.ObjectInfo)
	go func() {
		defer close(ch)
		for _, info := range out {
			select {
			case ch <- info:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
