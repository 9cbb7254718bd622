// Package filesystem implements stash.Service on the local disk.
//
// # Path Normalization
//
// Every caller-supplied path is normalized against the configured root R
// before it reaches the disk:
//
//   - exactly R: R itself, home-expanded, absolute and with symlinks resolved
//   - "./rest": rest joined onto the normalized R
//   - "~/rest": rest joined onto the user's home directory
//   - anything else: used unchanged
//
// A leading "fs://" is stripped first, so paths returned in Blob values can be
// passed back in.
//
// # Usage
//
//	svc, err := filesystem.New("./data", filesystem.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := svc.Init(ctx); err != nil {
//	    return err
//	}
//	blobs, err := svc.Blobs(ctx, "", stash.NewListBlobsRequest().WithExtensions(".json"))
//
// Content type and metadata of an upload are not persisted; they are
// re-derived from the file on read.
package filesystem
