package azure

import (
	"bytes"
	"context"
	"io"
	"maps"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type fakeBlob struct {
	data        []byte
	contentType string
	metadata    map[string]string
	created     time.Time
}

// fakeClient is an in-memory Client that fails like the blob service.
type fakeClient struct {
	mu        sync.Mutex
	created   bool
	blobs     map[string]fakeBlob
	uploads   int
	uploadErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{blobs: make(map[string]fakeBlob)}
}

var _ Client = (*fakeClient)(nil)

func (c *fakeClient) CreateContainer(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.created {
		return responseError(bloberror.ContainerAlreadyExists, http.StatusConflict)
	}
	c.created = true
	return nil
}

func (c *fakeClient) ContainerProperties(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.created {
		return responseError(bloberror.ContainerNotFound, http.StatusNotFound)
	}
	return nil
}

func (c *fakeClient) Stat(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blobs[name]; !ok {
		return responseError(bloberror.BlobNotFound, http.StatusNotFound)
	}
	return nil
}

func (c *fakeClient) Download(_ context.Context, name string) (*Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blobs[name]
	if !ok {
		return nil, responseError(bloberror.BlobNotFound, http.StatusNotFound)
	}
	return &Object{
		Body:         io.NopCloser(bytes.NewReader(bytes.Clone(b.data))),
		ContentType:  b.contentType,
		CreatedAt:    b.created,
		LastModified: b.created,
		Metadata:     maps.Clone(b.metadata),
	}, nil
}

func (c *fakeClient) Upload(_ context.Context, name string, data []byte, contentType string, metadata map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploadErr != nil {
		return c.uploadErr
	}
	if !c.created {
		return responseError(bloberror.ContainerNotFound, http.StatusNotFound)
	}
	if _, ok := c.blobs[name]; ok {
		return responseError(bloberror.BlobAlreadyExists, http.StatusConflict)
	}
	c.uploads++
	c.blobs[name] = fakeBlob{
		data:        bytes.Clone(data),
		contentType: contentType,
		metadata:    maps.Clone(metadata),
		created:     time.Now().UTC(),
	}
	return nil
}

func (c *fakeClient) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blobs[name]; !ok {
		return responseError(bloberror.BlobNotFound, http.StatusNotFound)
	}
	delete(c.blobs, name)
	return nil
}

func (c *fakeClient) List(_ context.Context, prefix string) (*Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.created {
		return nil, responseError(bloberror.ContainerNotFound, http.StatusNotFound)
	}

	out := &Listing{}
	seen := make(map[string]bool)
	for name := range c.blobs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			p := prefix + rest[:i]
			if !seen[p] {
				seen[p] = true
				out.Prefixes = append(out.Prefixes, p)
			}
			continue
		}
		out.Names = append(out.Names, name)
	}
	sort.Strings(out.Prefixes)
	sort.Strings(out.Names)
	return out, nil
}
