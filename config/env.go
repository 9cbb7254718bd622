package config

import (
	"os"
	"strconv"

	"github.com/hupe1980/stash/azure"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "STASH_"

func (c *Config) applyEnv() {
	c.Backend = getEnv("BACKEND", c.Backend)
	c.Compression = getEnv("COMPRESSION", c.Compression)
	c.CompressionLevel = getEnv("COMPRESSION_LEVEL", c.CompressionLevel)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Resources.MaxConcurrentReads = getEnvInt("MAX_CONCURRENT_READS", c.Resources.MaxConcurrentReads)
	c.Resources.IOLimitBytesPerSec = getEnvInt("IO_LIMIT_BYTES_PER_SEC", c.Resources.IOLimitBytesPerSec)

	c.Filesystem.Directory = getEnv("FS_DIRECTORY", c.Filesystem.Directory)

	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
	c.S3.SessionToken = getEnv("S3_SESSION_TOKEN", c.S3.SessionToken)
	c.S3.UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", c.S3.UsePathStyle)
	c.S3.DisableConditionalWrites = getEnvBool("S3_DISABLE_CONDITIONAL_WRITES", c.S3.DisableConditionalWrites)

	c.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKeyID = getEnv("MINIO_ACCESS_KEY_ID", c.MinIO.AccessKeyID)
	c.MinIO.SecretAccessKey = getEnv("MINIO_SECRET_ACCESS_KEY", c.MinIO.SecretAccessKey)
	c.MinIO.Secure = getEnvBool("MINIO_SECURE", c.MinIO.Secure)
	c.MinIO.Region = getEnv("MINIO_REGION", c.MinIO.Region)
	c.MinIO.Bucket = getEnv("MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.Prefix = getEnv("MINIO_PREFIX", c.MinIO.Prefix)

	c.Azure.Container = getEnv("AZURE_CONTAINER", c.Azure.Container)
	c.Azure.Credentials.Kind = azure.CredentialKind(getEnv("AZURE_CREDENTIAL_KIND", string(c.Azure.Credentials.Kind)))
	c.Azure.Credentials.Account = getEnv("AZURE_ACCOUNT", c.Azure.Credentials.Account)
	c.Azure.Credentials.AccessKey = getEnv("AZURE_ACCESS_KEY", c.Azure.Credentials.AccessKey)
	c.Azure.Credentials.SASToken = getEnv("AZURE_SAS_TOKEN", c.Azure.Credentials.SASToken)
	c.Azure.Credentials.ConnectionString = getEnv("AZURE_CONNECTION_STRING", c.Azure.Credentials.ConnectionString)
	c.Azure.Location.Kind = azure.LocationKind(getEnv("AZURE_LOCATION_KIND", string(c.Azure.Location.Kind)))
	c.Azure.Location.Account = getEnv("AZURE_ACCOUNT", c.Azure.Location.Account)
	c.Azure.Location.URI = getEnv("AZURE_ENDPOINT", c.Azure.Location.URI)

	c.GridFS.URI = getEnv("MONGO_URI", c.GridFS.URI)
	c.GridFS.Database = getEnv("MONGO_DATABASE", c.GridFS.Database)
	c.GridFS.Bucket = getEnv("GRIDFS_BUCKET", c.GridFS.Bucket)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
