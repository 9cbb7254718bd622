// Package minio implements stash.Service on S3-compatible stores through the
// MinIO client.
//
// # Usage
//
//	svc, err := minio.New(minio.Config{
//	    Endpoint:        "localhost:9000",
//	    AccessKeyID:     "minioadmin",
//	    SecretAccessKey: "minioadmin",
//	    Bucket:          "stash",
//	})
//
// Paths are reported in the "s3://bucket/key" form shared with the s3 package.
// Uploads never overwrite: an existing key is detected with StatObject and the
// write is skipped.
package minio
