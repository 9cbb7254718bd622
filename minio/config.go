package minio

import (
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Config is the serializable configuration of the MinIO backend.
type Config struct {
	// Endpoint is host[:port] without scheme (e.g. "localhost:9000").
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `yaml:"session_token" json:"session_token"`
	// Secure selects https.
	Secure bool   `yaml:"secure" json:"secure"`
	Region string `yaml:"region" json:"region"`
	Bucket string `yaml:"bucket" json:"bucket"`
	// Prefix is prepended to every key.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Validate checks required fields.
func (c Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return stash.NewError(Name, "config", "", stash.KindInvalidInput, errors.New("endpoint is required"))
	case c.Bucket == "":
		return stash.NewError(Name, "config", "", stash.KindInvalidInput, errors.New("bucket is required"))
	}
	return nil
}

// NewClient builds a MinIO client from c.
func (c Config) NewClient() (*minio.Client, error) {
	var creds *credentials.Credentials
	if c.AccessKeyID != "" {
		creds = credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
	} else {
		creds = credentials.NewIAM("")
	}
	return minio.New(c.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: c.Secure,
		Region: c.Region,
	})
}

type options struct {
	resolver   contenttype.Resolver
	logger     *stash.Logger
	controller *resource.Controller
}

// Option configures the MinIO Service.
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

// WithController bounds parallel fetches and payload throughput.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}
