package gridfs

import (
	"errors"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultDatabase  = "mydb"
	DefaultBucket    = "fs"
	DefaultChunkSize = 255 * 1024
)

// Config is the serializable configuration of the GridFS backend.
type Config struct {
	// URI is the MongoDB connection string. It is only read by New.
	URI       string `yaml:"uri" json:"uri"`
	Database  string `yaml:"database" json:"database"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	ChunkSize int32  `yaml:"chunk_size" json:"chunk_size"`
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	return c
}

// Validate checks the fields New needs.
func (c Config) Validate() error {
	if c.URI == "" {
		return stash.NewError(Name, "config", "", stash.KindInvalidInput, errors.New("uri is required"))
	}
	return nil
}

type options struct {
	resolver   contenttype.Resolver
	logger     *stash.Logger
	controller *resource.Controller
}

// Option configures the GridFS Service.
type Option func(*options)

// WithResolver sets the content-type resolver used when an upload has none.
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

// WithController bounds parallel downloads and payload throughput.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}
