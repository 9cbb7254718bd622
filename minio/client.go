package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// Client is the subset of the MinIO API used by Service. Download stands in
// for GetObject so that implementations need not construct *minio.Object.
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	Download(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

// sdkClient adapts *minio.Client to Client.
type sdkClient struct {
	*minio.Client
}

// Wrap adapts a MinIO client for NewWithClient.
func Wrap(c *minio.Client) Client {
	return sdkClient{Client: c}
}

func (c sdkClient) Download(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return c.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}
