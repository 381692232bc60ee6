package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the catalog service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string
		Env      string

		// Workflow runtime
		ServiceURL     string
		OpenAPIPath    string
		RuntimeCommand string
		ScaffolderURL  string

		// DescriptionBucketURL serves blob:// service URLs when set
		DescriptionBucketURL string

		// Provider
		Owner            string
		RefreshFrequency time.Duration
		RefreshTimeout   time.Duration
		FetchTimeout     time.Duration

		// Sinks
		Store   StoreConfig
		Archive ArchiveConfig

		ShutdownTimeout time.Duration
	}

	// StoreConfig locates the Redis instance backing the catalog store
	StoreConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	// ArchiveConfig locates the bucket applied snapshots are archived to.
	// An empty BucketURL disables archiving
	ArchiveConfig struct {
		BucketURL string
		Prefix    string
	}
)

const (
	DefaultAPIPort = 7007
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultEnv              = "development"
	DefaultServiceURL       = "http://localhost:8899"
	DefaultOpenAPIPath      = "/q/openapi"
	DefaultScaffolderURL    = "http://localhost:7007/api/scaffolder"
	DefaultOwner            = "infrastructure"
	DefaultRefreshFrequency = 5 * time.Second
	DefaultRefreshTimeout   = 10 * time.Minute
	DefaultFetchTimeout     = 30 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultRedisPrefix   = "swf-catalog"
	DefaultArchivePrefix = "snapshots/"

	MaxRedisDB = 15
)

var (
	ErrInvalidAPIPort          = errors.New("invalid API port")
	ErrInvalidServiceURL       = errors.New("invalid workflow service URL")
	ErrInvalidRefreshFrequency = errors.New(
		"refresh frequency must be positive",
	)
	ErrInvalidRefreshTimeout = errors.New("refresh timeout must be positive")
	ErrInvalidFetchTimeout   = errors.New("fetch timeout must be positive")
	ErrOwnerRequired         = errors.New("owner is required")
	ErrEnvRequired           = errors.New("environment is required")
	ErrInvalidDuration       = errors.New("invalid duration")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// provider, its sinks, and the backend router
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:          DefaultAPIHost,
		APIPort:          DefaultAPIPort,
		LogLevel:         "info",
		Env:              DefaultEnv,
		ServiceURL:       DefaultServiceURL,
		OpenAPIPath:      DefaultOpenAPIPath,
		ScaffolderURL:    DefaultScaffolderURL,
		Owner:            DefaultOwner,
		RefreshFrequency: DefaultRefreshFrequency,
		RefreshTimeout:   DefaultRefreshTimeout,
		FetchTimeout:     DefaultFetchTimeout,
		Store: StoreConfig{
			Addr:   DefaultRedisEndpoint,
			DB:     DefaultRedisDB,
			Prefix: DefaultRedisPrefix,
		},
		Archive: ArchiveConfig{
			Prefix: DefaultArchivePrefix,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	LoadStoreConfigFromEnv(&c.Store, "CATALOG")

	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("ENV", &c.Env)
	loadEnvString("SWF_SERVICE_URL", &c.ServiceURL)
	loadEnvString("SWF_OPENAPI_PATH", &c.OpenAPIPath)
	loadEnvString("SWF_OWNER", &c.Owner)
	loadEnvString("SCAFFOLDER_URL", &c.ScaffolderURL)
	loadEnvString("RUNTIME_COMMAND", &c.RuntimeCommand)
	loadEnvString("DESCRIPTION_BUCKET_URL", &c.DescriptionBucketURL)
	loadEnvString("ARCHIVE_BUCKET_URL", &c.Archive.BucketURL)
	loadEnvString("ARCHIVE_PREFIX", &c.Archive.Prefix)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SWF_REFRESH_FREQUENCY", &c.RefreshFrequency},
		{"SWF_REFRESH_TIMEOUT", &c.RefreshTimeout},
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := loadEnvDuration(d.key, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	u, err := url.Parse(c.ServiceURL)
	if err != nil || c.ServiceURL == "" || u.Scheme == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServiceURL, c.ServiceURL)
	}

	if c.RefreshFrequency <= 0 {
		return ErrInvalidRefreshFrequency
	}

	if c.RefreshTimeout <= 0 {
		return ErrInvalidRefreshTimeout
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}

	if c.Owner == "" {
		return ErrOwnerRequired
	}

	if c.Env == "" {
		return ErrEnvRequired
	}

	return nil
}

// LoadStoreConfigFromEnv loads Redis store configuration from environment
// variables with the given prefix (e.g., "CATALOG")
func LoadStoreConfigFromEnv(s *StoreConfig, prefix string) {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err == nil && db >= 0 && db <= MaxRedisDB {
			s.DB = db
		}
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		s.Prefix = envPrefix
	}
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, s)
	}
	*dst = d
	return nil
}
