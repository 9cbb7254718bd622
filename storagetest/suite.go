package storagetest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
)

// Factory returns a fresh, empty service for one subtest.
type Factory func(t *testing.T) stash.Service

// Options adapts the suite to a backend.
type Options struct {
	// Path maps a relative key to the path the backend expects.
	// Defaults to the key itself.
	Path func(key string) string

	// SkipContentType disables the content-type inference checks for
	// backends that do not report one.
	SkipContentType bool
}

// RelativePath prefixes key with "./", the form the filesystem backend
// resolves against its root.
func RelativePath(key string) string { return "./" + key }

func (o Options) path(key string) string {
	if o.Path == nil {
		return key
	}
	return o.Path(key)
}

// Run executes the conformance suite against services built by newService.
func Run(t *testing.T, newService Factory, opts Options) {
	t.Helper()

	setup := func(t *testing.T) (context.Context, stash.Service) {
		t.Helper()
		ctx := context.Background()
		svc := newService(t)
		require.NoError(t, svc.Init(ctx))
		return ctx, svc
	}

	t.Run("InitIdempotent", func(t *testing.T) {
		ctx, svc := setup(t)
		require.NoError(t, svc.Init(ctx))
		require.NoError(t, svc.Init(ctx))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx, svc := setup(t)
		data := NewRNG(4711).Bytes(2048)
		p := opts.path("roundtrip.bin")

		require.NoError(t, svc.Upload(ctx, p, stash.NewUploadRequest(data)))

		ok, err := svc.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok)

		got, ok, err := svc.Open(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, data, got)

		blob, ok, err := svc.Blob(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		f, isFile := blob.(*stash.File)
		require.True(t, isFile, "expected *stash.File, got %T", blob)
		assert.Equal(t, "roundtrip.bin", f.Name)
		assert.Equal(t, int64(len(data)), f.Size)
		assert.Equal(t, data, f.Data)
		assert.NotNil(t, f.Metadata)
		assert.Contains(t, f.Path, "://")
	})

	t.Run("NoClobber", func(t *testing.T) {
		ctx, svc := setup(t)
		p := opts.path("noclobber.txt")

		require.NoError(t, svc.Upload(ctx, p, stash.NewUploadRequest([]byte("first"))))
		require.NoError(t, svc.Upload(ctx, p, stash.NewUploadRequest([]byte("second"))))

		got, ok, err := svc.Open(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "first", string(got))
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		ctx, svc := setup(t)
		p := opts.path("gone.txt")

		require.NoError(t, svc.Delete(ctx, p))

		require.NoError(t, svc.Upload(ctx, p, stash.NewUploadRequest([]byte("x"))))
		require.NoError(t, svc.Delete(ctx, p))
		require.NoError(t, svc.Delete(ctx, p))

		ok, err := svc.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Missing", func(t *testing.T) {
		ctx, svc := setup(t)
		p := opts.path("missing.txt")

		data, ok, err := svc.Open(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, data)

		blob, ok, err := svc.Blob(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, blob)

		ok, err = svc.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Scenario", func(t *testing.T) {
		ctx, svc := setup(t)
		p := opts.path("weow.txt")

		req := stash.NewUploadRequest([]byte("weow fluff")).WithContentType("text/plain")
		require.NoError(t, svc.Upload(ctx, p, req))

		ok, err := svc.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok)

		data, ok, err := svc.Open(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "weow fluff", string(data))

		require.NoError(t, svc.Delete(ctx, p))

		ok, err = svc.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ListExtensions", func(t *testing.T) {
		ctx, svc := setup(t)
		require.NoError(t, svc.Upload(ctx, opts.path("a.json"), stash.NewUploadRequest([]byte(`{"a":1}`))))
		require.NoError(t, svc.Upload(ctx, opts.path("b.txt"), stash.NewUploadRequest([]byte("hello"))))

		all, err := svc.Blobs(ctx, "", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.json", "b.txt"}, names(all))

		filtered, err := svc.Blobs(ctx, "", stash.NewListBlobsRequest().WithExtensions(".json"))
		require.NoError(t, err)
		require.Equal(t, []string{"a.json"}, names(filtered))

		if !opts.SkipContentType {
			f := filtered[0].(*stash.File)
			assert.Equal(t, contenttype.JSON, f.ContentType)
		}
	})

	t.Run("ListExcluded", func(t *testing.T) {
		ctx, svc := setup(t)
		require.NoError(t, svc.Upload(ctx, opts.path("keep.txt"), stash.NewUploadRequest([]byte("1"))))
		require.NoError(t, svc.Upload(ctx, opts.path("drop.txt"), stash.NewUploadRequest([]byte("2"))))

		blobs, err := svc.Blobs(ctx, "", stash.NewListBlobsRequest().Exclude("drop.txt"))
		require.NoError(t, err)
		assert.Equal(t, []string{"keep.txt"}, names(blobs))
	})

	t.Run("ListEmpty", func(t *testing.T) {
		ctx, svc := setup(t)
		blobs, err := svc.Blobs(ctx, "", stash.NewListBlobsRequest().WithPrefix("nothing-here"))
		require.NoError(t, err)
		assert.Empty(t, blobs)
	})

	if !opts.SkipContentType {
		t.Run("ContentTypeScalar", func(t *testing.T) {
			ctx, svc := setup(t)
			p := opts.path("scalar.json")
			require.NoError(t, svc.Upload(ctx, p, stash.NewUploadRequest([]byte(`"hello"`))))

			blob, ok, err := svc.Blob(ctx, p)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, contenttype.Text, blob.(*stash.File).ContentType)
		})
	}

	t.Run("Healthcheck", func(t *testing.T) {
		ctx, svc := setup(t)
		assert.NoError(t, stash.Healthcheck(ctx, svc))
	})
}

// names returns the sorted file names in blobs.
func names(blobs []stash.Blob) []string {
	out := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if _, ok := b.(*stash.File); ok {
			out = append(out, b.BlobName())
		}
	}
	sort.Strings(out)
	return out
}
