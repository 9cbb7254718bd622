package stash

import (
	"fmt"
	"time"
)

// Blob is either a *File or a *Directory.
//
// Use a type switch to discriminate:
//
//	switch b := blob.(type) {
//	case *stash.File:
//	    fmt.Println(b.Size)
//	case *stash.Directory:
//	    fmt.Println(b.Path)
//	}
type Blob interface {
	fmt.Stringer

	// BlobName returns the base name of the entry.
	BlobName() string
	// BlobPath returns the fully-qualified "<scheme>://<location>" path.
	BlobPath() string

	isBlob()
}

// File is a stored object together with its contents.
type File struct {
	Name string
	Path string
	Size int64
	Data []byte

	// ContentType is empty when the backend could not determine one.
	ContentType string

	// CreatedAt and LastModifiedAt are zero when the backend cannot supply them.
	CreatedAt      time.Time
	LastModifiedAt time.Time

	IsSymlink bool
	Metadata  map[string]string
}

// NewFile returns a File with Size derived from data and an empty metadata map.
func NewFile(name, path string, data []byte) *File {
	return &File{
		Name:     name,
		Path:     path,
		Size:     int64(len(data)),
		Data:     data,
		Metadata: map[string]string{},
	}
}

func (f *File) BlobName() string { return f.Name }
func (f *File) BlobPath() string { return f.Path }
func (*File) isBlob()            {}

// CreatedAtMillis returns the creation time in milliseconds since the Unix epoch.
func (f *File) CreatedAtMillis() (int64, bool) { return millis(f.CreatedAt) }

// LastModifiedAtMillis returns the modification time in milliseconds since the Unix epoch.
func (f *File) LastModifiedAtMillis() (int64, bool) { return millis(f.LastModifiedAt) }

func (f *File) String() string {
	if f.ContentType == "" {
		return fmt.Sprintf("file [%s] (%d bytes)", f.Path, f.Size)
	}
	return fmt.Sprintf("file [%s] (%d bytes) | %s", f.Path, f.Size, f.ContentType)
}

// Directory is a container entry. It never carries data.
type Directory struct {
	Name      string
	Path      string
	CreatedAt time.Time
}

func (d *Directory) BlobName() string { return d.Name }
func (d *Directory) BlobPath() string { return d.Path }
func (*Directory) isBlob()            {}

// CreatedAtMillis returns the creation time in milliseconds since the Unix epoch.
func (d *Directory) CreatedAtMillis() (int64, bool) { return millis(d.CreatedAt) }

func (d *Directory) String() string {
	return "directory " + d.Path
}

// millis reports false for the zero time.
func millis(t time.Time) (int64, bool) {
	if t.IsZero() {
		return 0, false
	}
	return t.UnixMilli(), true
}

// FromMillis is the inverse of the millisecond accessors. Negative values are
// treated as unavailable and yield the zero time.
func FromMillis(ms int64) time.Time {
	if ms < 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
