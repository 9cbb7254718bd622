package stash

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Schemes used in Blob paths.
const (
	SchemeFS     = "fs"
	SchemeS3     = "s3"
	SchemeAzure  = "azure"
	SchemeGridFS = "gridfs"
	SchemeMemory = "memory"
)

// Service is the storage contract every backend implements.
//
// Read operations report absence through their boolean result or an empty
// list; errors are reserved for failures. Implementations must be safe for
// concurrent use.
type Service interface {
	// Name returns the backend identifier ("filesystem", "s3", ...).
	Name() string

	// Init performs idempotent setup such as creating the root directory or bucket.
	Init(ctx context.Context) error

	// Open returns the raw contents at path. ok is false when nothing usable exists.
	Open(ctx context.Context, path string) (data []byte, ok bool, err error)

	// Blob returns the entry at path with its metadata.
	Blob(ctx context.Context, path string) (blob Blob, ok bool, err error)

	// Blobs lists entries under path ("" for the backend root) filtered by req.
	// A nil req lists files with no filters.
	Blobs(ctx context.Context, path string, req *ListBlobsRequest) ([]Blob, error)

	// Delete removes the entry at path. Deleting an absent path succeeds.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an entry exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Upload stores req at path. An existing entry is left untouched and the
	// call succeeds.
	Upload(ctx context.Context, path string, req UploadRequest) error
}

// HealthChecker is implemented by services that can probe their backend.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// Healthcheck runs svc's health check, or succeeds when svc has none.
func Healthcheck(ctx context.Context, svc Service) error {
	if hc, ok := svc.(HealthChecker); ok {
		return hc.Healthcheck(ctx)
	}
	return nil
}

// FormatPath renders "<scheme>://<location>".
func FormatPath(scheme, location string) string {
	return scheme + "://" + location
}

// TrimRelative strips any leading "~/" and "./" segments from an object key.
func TrimRelative(p string) string {
	for {
		switch {
		case strings.HasPrefix(p, "~/"):
			p = p[2:]
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		default:
			return p
		}
	}
}

// ValidatePath rejects paths that are not valid UTF-8.
func ValidatePath(service, op, p string) error {
	if !utf8.ValidString(p) {
		return NewError(service, op, p, KindInvalidInput, ErrInvalidPath)
	}
	return nil
}
