package filestore

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to reach the object store that hosts
// remote SQLite databases.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider `koanf:"provider"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO. Empty disables remote files.
	Endpoint string `koanf:"endpoint"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `koanf:"access_key"`

	// SecretKey is the secret access key.
	SecretKey string `koanf:"secret_key"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `koanf:"use_ssl"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `koanf:"region"`

	// CacheDir receives downloaded database files.
	CacheDir string `koanf:"cache_dir"`
}

// Enabled reports whether an object store is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	}
}
