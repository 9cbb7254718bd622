package stash

import (
	"maps"
	"path/filepath"
	"strings"
)

// DirExcludePrefix marks an entry in ListBlobsRequest.Excluded as a directory name.
const DirExcludePrefix = "dir:"

// ListBlobsRequest filters the result of Service.Blobs.
//
// The zero value lists files only, with no extension filter, no exclusions
// and no prefix.
type ListBlobsRequest struct {
	// IncludeDirs emits Directory entries in addition to files.
	IncludeDirs bool
	// Extensions restricts files to these extensions (with leading dot).
	// An empty set allows every extension.
	Extensions map[string]struct{}
	// Excluded holds exact file names, or "dir:<name>" for directories.
	Excluded map[string]struct{}
	// Prefix narrows the scan below the listing root.
	Prefix string
}

// NewListBlobsRequest returns an empty request.
func NewListBlobsRequest() *ListBlobsRequest {
	return &ListBlobsRequest{
		Extensions: map[string]struct{}{},
		Excluded:   map[string]struct{}{},
	}
}

// Exclude adds names to the exclusion set.
func (r *ListBlobsRequest) Exclude(names ...string) *ListBlobsRequest {
	if r.Excluded == nil {
		r.Excluded = map[string]struct{}{}
	}
	for _, n := range names {
		r.Excluded[n] = struct{}{}
	}
	return r
}

// ExcludeDir excludes a directory by name.
func (r *ListBlobsRequest) ExcludeDir(names ...string) *ListBlobsRequest {
	for _, n := range names {
		r.Exclude(DirExcludePrefix + n)
	}
	return r
}

// WithPrefix sets the scan prefix.
func (r *ListBlobsRequest) WithPrefix(prefix string) *ListBlobsRequest {
	r.Prefix = prefix
	return r
}

// WithExtensions replaces the extension filter. Entries without a leading
// dot are ignored.
func (r *ListBlobsRequest) WithExtensions(exts ...string) *ListBlobsRequest {
	r.Extensions = make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if strings.HasPrefix(e, ".") {
			r.Extensions[e] = struct{}{}
		}
	}
	return r
}

// WithIncludeDirs toggles directory entries.
func (r *ListBlobsRequest) WithIncludeDirs(include bool) *ListBlobsRequest {
	r.IncludeDirs = include
	return r
}

// IsExcluded reports whether a file name is excluded. Safe on a nil request.
func (r *ListBlobsRequest) IsExcluded(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Excluded[name]
	return ok
}

// IsDirExcluded reports whether a directory name is excluded.
func (r *ListBlobsRequest) IsDirExcluded(name string) bool {
	return r.IsExcluded(DirExcludePrefix + name)
}

// IsExtAllowed reports whether a file with the given name passes the
// extension filter. Names without an extension always pass.
func (r *ListBlobsRequest) IsExtAllowed(name string) bool {
	if r == nil || len(r.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return true
	}
	_, ok := r.Extensions[ext]
	return ok
}

// AcceptsDir reports whether a directory entry should be emitted.
func (r *ListBlobsRequest) AcceptsDir(name string) bool {
	return r != nil && r.IncludeDirs && !r.IsDirExcluded(name)
}

// AcceptsFile reports whether a file entry passes every filter.
func (r *ListBlobsRequest) AcceptsFile(name string) bool {
	return r.IsExtAllowed(name) && !r.IsExcluded(name)
}

// PrefixOrEmpty returns Prefix, or "" for a nil request.
func (r *ListBlobsRequest) PrefixOrEmpty() string {
	if r == nil {
		return ""
	}
	return r.Prefix
}

// UploadRequest carries the payload and attributes of an upload.
type UploadRequest struct {
	// ContentType overrides inference when non-empty.
	ContentType string
	Metadata    map[string]string
	Data        []byte
}

// NewUploadRequest returns a request for data with empty metadata.
func NewUploadRequest(data []byte) UploadRequest {
	return UploadRequest{Data: data, Metadata: map[string]string{}}
}

// WithContentType sets the content type override.
func (r UploadRequest) WithContentType(ct string) UploadRequest {
	r.ContentType = ct
	return r
}

// WithMetadata merges md into the request metadata.
func (r UploadRequest) WithMetadata(md map[string]string) UploadRequest {
	merged := make(map[string]string, len(r.Metadata)+len(md))
	maps.Copy(merged, r.Metadata)
	maps.Copy(merged, md)
	r.Metadata = merged
	return r
}

// WithData replaces the payload.
func (r UploadRequest) WithData(data []byte) UploadRequest {
	r.Data = data
	return r
}
