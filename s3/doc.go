// Package s3 implements stash.Service on Amazon S3 and S3-compatible stores
// using the AWS SDK for Go v2.
//
// # Usage
//
//	svc, err := s3.New(ctx, s3.Config{
//	    Bucket: "my-bucket",
//	    Prefix: "tenant-a/",
//	    Region: "eu-central-1",
//	})
//	if err != nil {
//	    return err
//	}
//	if err := svc.Init(ctx); err != nil { // creates the bucket if missing
//	    return err
//	}
//
// Custom endpoints (LocalStack, Ceph, MinIO) are set with Endpoint and
// UsePathStyle.
//
// # Features
//
//   - Conditional writes (If-None-Match) for no-clobber uploads
//   - Automatic pagination for listing, one level deep with "/" delimiter
//   - Parallel object fetches bounded by a resource.Controller
//   - Configurable prefix for multi-tenant isolation
package s3
