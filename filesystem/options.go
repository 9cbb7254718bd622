package filesystem

import (
	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	ifs "github.com/hupe1980/stash/internal/fs"
	"github.com/hupe1980/stash/resource"
)

// Config is the serializable configuration of the filesystem backend.
type Config struct {
	// Directory is the root all relative paths resolve against.
	Directory string `yaml:"directory" json:"directory"`
}

type options struct {
	resolver    contenttype.Resolver
	logger      *stash.Logger
	fs          ifs.FileSystem
	controller  *resource.Controller
	concurrency int
}

// Option configures the filesystem Service.
type Option func(*options)

// WithResolver sets the content-type resolver. Defaults to contenttype.New().
func WithResolver(r contenttype.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *stash.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFileSystem replaces the disk access layer. Used for fault injection in tests.
func WithFileSystem(fsys ifs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithController shares a resource controller with other services.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithConcurrency bounds the number of files read in parallel by one Blobs call.
// Values below 1 fall back to the controller's read limit.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

func defaultOptions() options {
	return options{
		resolver: contenttype.New(),
		logger:   stash.NoopLogger(),
		fs:       ifs.Default,
	}
}
