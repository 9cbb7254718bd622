package azure

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// Object is a downloaded blob. The caller closes Body.
type Object struct {
	Body         io.ReadCloser
	ContentType  string
	CreatedAt    time.Time
	LastModified time.Time
	Metadata     map[string]string
}

// Listing is one level of a hierarchical listing.
type Listing struct {
	// Prefixes are virtual directories, without the trailing delimiter.
	Prefixes []string
	// Names are blob names directly under the listed prefix.
	Names []string
}

// Client is the container-scoped API used by Service. ContainerClient
// implements it over azblob; tests supply fakes returning
// *azcore.ResponseError values.
type Client interface {
	CreateContainer(ctx context.Context) error
	ContainerProperties(ctx context.Context) error
	// Stat fetches the properties of name without its content.
	Stat(ctx context.Context, name string) error
	Download(ctx context.Context, name string) (*Object, error)
	// Upload writes a block blob only when name does not exist yet.
	Upload(ctx context.Context, name string, data []byte, contentType string, metadata map[string]string) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) (*Listing, error)
}

// ContainerClient implements Client with an azblob container client.
type ContainerClient struct {
	c *container.Client
}

var _ Client = (*ContainerClient)(nil)

// NewContainerClient wraps c.
func NewContainerClient(c *container.Client) *ContainerClient {
	return &ContainerClient{c: c}
}

func (cc *ContainerClient) CreateContainer(ctx context.Context) error {
	_, err := cc.c.Create(ctx, nil)
	return err
}

func (cc *ContainerClient) ContainerProperties(ctx context.Context) error {
	_, err := cc.c.GetProperties(ctx, nil)
	return err
}

func (cc *ContainerClient) Stat(ctx context.Context, name string) error {
	_, err := cc.c.NewBlobClient(name).GetProperties(ctx, nil)
	return err
}

func (cc *ContainerClient) Download(ctx context.Context, name string) (*Object, error) {
	resp, err := cc.c.NewBlobClient(name).DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Object{
		Body:         resp.Body,
		ContentType:  deref(resp.ContentType),
		CreatedAt:    deref(resp.CreationTime),
		LastModified: deref(resp.LastModified),
		Metadata:     derefMetadata(resp.Metadata),
	}, nil
}

func (cc *ContainerClient) Upload(ctx context.Context, name string, data []byte, contentType string, metadata map[string]string) error {
	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = to.Ptr(v)
	}
	_, err := cc.c.NewBlockBlobClient(name).Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
		Metadata:    meta,
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		},
	})
	return err
}

func (cc *ContainerClient) Delete(ctx context.Context, name string) error {
	_, err := cc.c.NewBlobClient(name).Delete(ctx, nil)
	return err
}

func (cc *ContainerClient) List(ctx context.Context, prefix string) (*Listing, error) {
	pager := cc.c.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: to.Ptr(prefix),
	})

	out := &Listing{}
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if page.Segment == nil {
			continue
		}
		for _, p := range page.Segment.BlobPrefixes {
			if p.Name != nil {
				out.Prefixes = append(out.Prefixes, strings.TrimSuffix(*p.Name, "/"))
			}
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				out.Names = append(out.Names, *item.Name)
			}
		}
	}
	return out, nil
}

func derefMetadata(m map[string]*string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
