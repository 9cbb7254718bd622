// Package gridfs implements stash.Service on a MongoDB GridFS bucket.
//
// GridFS has no directories. Files are addressed by their filename, listing
// filters by filename prefix, and ListBlobsRequest.IncludeDirs is ignored.
// The content type is stored in metadata.contentType; other string metadata
// values round-trip through stash.File.Metadata.
//
//	svc, err := gridfs.New(ctx, gridfs.Config{URI: "mongodb://localhost:27017"})
//	if err != nil {
//	    return err
//	}
//	defer svc.Close(ctx)
package gridfs
