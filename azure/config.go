package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/contenttype"
	"github.com/hupe1980/stash/resource"
)

// CredentialKind selects the authentication scheme.
type CredentialKind string

const (
	CredentialAnonymous        CredentialKind = "anonymous"
	CredentialAccessKey        CredentialKind = "access_key"
	CredentialSASToken         CredentialKind = "sas_token"
	CredentialBearer           CredentialKind = "bearer"
	CredentialConnectionString CredentialKind = "connection_string"
)

// LocationKind selects how the service URL is built.
type LocationKind string

const (
	LocationPublic   LocationKind = "public"
	LocationChina    LocationKind = "china"
	LocationEmulator LocationKind = "emulator"
	LocationCustom   LocationKind = "custom"
)

// Well-known Azurite development account.
const (
	EmulatorAccount   = "devstoreaccount1"
	EmulatorAccessKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	EmulatorAddress   = "127.0.0.1"
	EmulatorPort      = 10000
)

// Credentials holds the secrets for one CredentialKind. Only the fields of
// the selected kind are read.
type Credentials struct {
	Kind             CredentialKind `yaml:"kind" json:"kind"`
	Account          string         `yaml:"account" json:"account"`
	AccessKey        string         `yaml:"access_key" json:"access_key"`
	SASToken         string         `yaml:"sas_token" json:"sas_token"`
	Token            string         `yaml:"token" json:"token"`
	ConnectionString string         `yaml:"connection_string" json:"connection_string"`
}

// Location describes where the storage account is reachable.
type Location struct {
	Kind    LocationKind `yaml:"kind" json:"kind"`
	Account string       `yaml:"account" json:"account"`
	// Address and Port are used by LocationEmulator.
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
	// URI is the service URL for LocationCustom.
	URI string `yaml:"uri" json:"uri"`
}

// Config is the serializable configuration of the Azure backend.
type Config struct {
	Container   string      `yaml:"container" json:"container"`
	Credentials Credentials `yaml:"credentials" json:"credentials"`
	Location    Location    `yaml:"location" json:"location"`
}

func (c Config) withDefaults() Config {
	if c.Credentials.Kind == "" {
		c.Credentials.Kind = CredentialAnonymous
	}
	if c.Location.Kind == "" {
		c.Location.Kind = LocationPublic
	}
	if c.Location.Kind == LocationEmulator {
		if c.Location.Address == "" {
			c.Location.Address = EmulatorAddress
		}
		if c.Location.Port == 0 {
			c.Location.Port = EmulatorPort
		}
		if c.Location.Account == "" {
			c.Location.Account = EmulatorAccount
		}
	}
	if c.Credentials.Kind == CredentialAccessKey && c.Credentials.Account == "" {
		c.Credentials.Account = c.Location.Account
	}
	return c
}

func configError(msg string) error {
	return stash.NewError(Name, "config", "", stash.KindInvalidInput, errors.New(msg))
}

// Validate checks that the selected kinds have the fields they need.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Container == "" {
		return configError("container is required")
	}

	switch c.Credentials.Kind {
	case CredentialAnonymous:
	case CredentialAccessKey:
		if c.Credentials.Account == "" || c.Credentials.AccessKey == "" {
			return configError("access_key credentials need account and access_key")
		}
	case CredentialSASToken:
		if c.Credentials.SASToken == "" {
			return configError("sas_token credentials need sas_token")
		}
	case CredentialBearer:
		if c.Credentials.Token == "" {
			return configError("bearer credentials need token")
		}
	case CredentialConnectionString:
		if c.Credentials.ConnectionString == "" {
			return configError("connection_string credentials need connection_string")
		}
		// The connection string carries the endpoint.
		return nil
	default:
		return configError(fmt.Sprintf("unknown credential kind %q", c.Credentials.Kind))
	}

	switch c.Location.Kind {
	case LocationPublic, LocationChina, LocationEmulator:
		if c.Location.Account == "" {
			return configError("location needs account")
		}
	case LocationCustom:
		if c.Location.URI == "" {
			return configError("custom location needs uri")
		}
	default:
		return configError(fmt.Sprintf("unknown location kind %q", c.Location.Kind))
	}
	return nil
}

// ServiceURL returns the blob service endpoint with a trailing slash.
func (l Location) ServiceURL() string {
	switch l.Kind {
	case LocationChina:
		return fmt.Sprintf("https://%s.blob.core.chinacloudapi.cn/", l.Account)
	case LocationEmulator:
		return fmt.Sprintf("http://%s:%d/%s/", l.Address, l.Port, l.Account)
	case LocationCustom:
		if strings.HasSuffix(l.URI, "/") {
			return l.URI
		}
		return l.URI + "/"
	default:
		return fmt.Sprintf("https://%s.blob.core.windows.net/", l.Account)
	}
}

// NewClient builds an azblob client for c.
func (c Config) NewClient() (*azblob.Client, error) {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	serviceURL := c.Location.ServiceURL()
	switch c.Credentials.Kind {
	case CredentialAccessKey:
		cred, err := azblob.NewSharedKeyCredential(c.Credentials.Account, c.Credentials.AccessKey)
		if err != nil {
			return nil, stash.NewError(Name, "config", "", stash.KindInvalidInput, err)
		}
		return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	case CredentialSASToken:
		return azblob.NewClientWithNoCredential(serviceURL+"?"+strings.TrimPrefix(c.Credentials.SASToken, "?"), nil)
	case CredentialBearer:
		return azblob.NewClient(serviceURL, StaticToken(c.Credentials.Token), nil)
	case CredentialConnectionString:
		return azblob.NewClientFromConnectionString(c.Credentials.ConnectionString, nil)
	default:
		return azblob.NewClientWithNoCredential(serviceURL, nil)
	}
}

// StaticToken is an azcore.TokenCredential that always returns the same
// bearer token.
type StaticToken string

var _ azcore.TokenCredential = StaticToken("")

// GetToken implements azcore.TokenCredential.
func (t StaticToken) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: string(t), ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type options struct {
	resolver   contenttype.Resolver
	logger     *stash.Logger
	controller *resource.Controller
}

// Option configures the Azure Service.
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
