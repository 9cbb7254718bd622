package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/stash/azure"
	"github.com/hupe1980/stash/compress"
	"github.com/hupe1980/stash/filesystem"
	"github.com/hupe1980/stash/gridfs"
	"github.com/hupe1980/stash/minio"
	"github.com/hupe1980/stash/s3"
)

// Backend names accepted in Config.Backend.
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendMinIO  = "minio"
	BackendAzure  = "azure"
	BackendGridFS = "gridfs"
)

// Log formats accepted in Logging.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatNone = "none"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Config selects and configures one backend.
type Config struct {
	Backend string `yaml:"backend" json:"backend"`

	Filesystem filesystem.Config `yaml:"filesystem" json:"filesystem"`
	S3         s3.Config         `yaml:"s3" json:"s3"`
	MinIO      minio.Config      `yaml:"minio" json:"minio"`
	Azure      azure.Config      `yaml:"azure" json:"azure"`
	GridFS     gridfs.Config     `yaml:"gridfs" json:"gridfs"`

	// Compression is "", "none", "zstd" or "lz4".
	Compression string `yaml:"compression" json:"compression"`
	// CompressionLevel is the zstd level: fastest, default, better or best.
	CompressionLevel string `yaml:"compression_level" json:"compression_level"`

	Logging   Logging   `yaml:"logging" json:"logging"`
	Resources Resources `yaml:"resources" json:"resources"`
}

// Logging configures the logger built by NewLogger.
type Logging struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" json:"level"`
	// Format is text (default), json or none.
	Format string `yaml:"format" json:"format"`
}

// Resources configures the shared resource controller.
type Resources struct {
	MaxConcurrentReads int64 `yaml:"max_concurrent_reads" json:"max_concurrent_reads"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec" json:"io_limit_bytes_per_sec"`
}

// Default returns a config for the in-memory backend.
func Default() Config {
	return Config{
		Backend: BackendMemory,
		Logging: Logging{Level: "info", Format: FormatText},
	}
}

// Load reads the YAML file at path and applies environment overrides.
// An empty path yields FromEnv.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// FromEnv builds a config from STASH_* environment variables only.
func FromEnv() (Config, error) {
	return Load("")
}

// Validate checks the backend selection and the section it reads.
func (c Config) Validate() error {
	if _, err := compress.ParseCodec(c.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := compress.ParseLevel(c.CompressionLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Logging.Format {
	case "", FormatText, FormatJSON, FormatNone:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Resources.MaxConcurrentReads < 0 || c.Resources.IOLimitBytesPerSec < 0 {
		return fmt.Errorf("%w: resource limits must not be negative", ErrInvalidConfig)
	}

	var err error
	switch c.Backend {
	case BackendMemory:
	case BackendFS:
		if c.Filesystem.Directory == "" {
			err = errors.New("filesystem.directory is required")
		}
	case BackendS3:
		err = c.S3.Validate()
	case BackendMinIO:
		err = c.MinIO.Validate()
	case BackendAzure:
		err = c.Azure.Validate()
	case BackendGridFS:
		err = c.GridFS.Validate()
	case "":
		err = errors.New("backend is required")
	default:
		err = fmt.Errorf("unknown backend %q", c.Backend)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
