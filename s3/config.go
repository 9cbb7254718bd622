package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultRegion    = "us-east-1"
	DefaultAppName   = "stash"
	DefaultBucketACL = types.BucketCannedACLPrivate
)

// Config is the serializable configuration of the S3 backend.
type Config struct {
	Bucket string `yaml:"bucket" json:"bucket"`
	// Prefix is prepended to every key (e.g. "tenant-a/").
	Prefix string `yaml:"prefix" json:"prefix"`
	Region string `yaml:"region" json:"region"`
	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `yaml:"session_token" json:"session_token"`

	// AppName is sent as the SDK application id.
	AppName      string `yaml:"app_name" json:"app_name"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style"`

	// DefaultObjectACL is applied to uploads when set (e.g. "public-read").
	DefaultObjectACL string `yaml:"default_object_acl" json:"default_object_acl"`
	// DefaultBucketACL is applied when Init creates the bucket.
	DefaultBucketACL string `yaml:"default_bucket_acl" json:"default_bucket_acl"`

	// DisableConditionalWrites replaces If-None-Match with a HEAD check for
	// stores that do not support conditional PUT.
	DisableConditionalWrites bool `yaml:"disable_conditional_writes" json:"disable_conditional_writes"`
}

func (c Config) withDefaults() Config {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.DefaultBucketACL == "" {
		c.DefaultBucketACL = string(DefaultBucketACL)
	}
	return c
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return stash.NewError(Name, "config", "", stash.KindInvalidInput, errors.New("bucket is required"))
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return stash.NewError(Name, "config", "", stash.KindInvalidInput, errors.New("access key id and secret access key must be set together"))
	}
	return nil
}

// LoadAWSConfig converts c into an SDK configuration.
func (c Config) LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	c = c.withDefaults()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
		awsconfig.WithAppID(c.AppName),
	}
	if c.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, loadOpts...)
}

// clientOptions applies endpoint and addressing settings.
func (c Config) clientOptions(o *s3.Options) {
	if c.Endpoint != "" {
		o.BaseEndpoint = aws.String(c.Endpoint)
	}
	o.UsePathStyle = c.UsePathStyle
}

type options struct {
	resolver   contenttype.Resolver
	logger     *stash.Logger
	controller *resource.Controller
}

// Option configures the S3 Service.
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
