// Package config loads the immutable runtime configuration from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"govreport/internal/blob"
)

const devJWTSecret = "dev-secret-change-in-production"

// BlobConfig selects the object store that holds export workbooks.
type BlobConfig struct {
	Provider  string `env:"BLOB_PROVIDER" envDefault:"local"`
	Container string `env:"BLOB_CONTAINER"`

	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Region   string `env:"S3_REGION" envDefault:"us-east-1"`
	S3KeyID    string `env:"S3_KEY_ID"`
	S3Secret   string `env:"S3_SECRET"`

	AzureAccountName string `env:"AZURE_STORAGE_ACCOUNT"`
	AzureAccountKey  string `env:"AZURE_STORAGE_KEY"`

	GCSKeyFile string `env:"GCS_KEY_FILE"`

	// Local provider: files live under LocalDir and are served by the API at
	// PublicBaseURL with HMAC-signed links.
	LocalDir      string `env:"BLOB_LOCAL_DIR" envDefault:"exports"`
	PublicBaseURL string `env:"BLOB_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	SigningKey    string `env:"BLOB_SIGNING_KEY"`
}

// Store returns the blob package configuration.
func (b BlobConfig) Store() blob.Config {
	return blob.Config{
		Provider:         b.Provider,
		Container:        b.Container,
		S3Endpoint:       b.S3Endpoint,
		S3Region:         b.S3Region,
		S3KeyID:          b.S3KeyID,
		S3Secret:         b.S3Secret,
		AzureAccountName: b.AzureAccountName,
		AzureAccountKey:  b.AzureAccountKey,
		GCSKeyFile:       b.GCSKeyFile,
		LocalDir:         b.LocalDir,
		PublicBaseURL:    b.PublicBaseURL,
		SigningKey:       b.SigningKey,
	}
}

// Config is the runtime configuration. It is built once by Load and not
// modified afterwards.
type Config struct {
	// DatabaseURL is the reporting warehouse DSN.
	DatabaseURL string `env:"DATABASE_URL"`
	// CacheURL is redis://... or memory://.
	CacheURL string `env:"CACHE_URL" envDefault:"memory://"`
	// QueueBrokerURL is sqlite://<path>. Empty keeps tasks in the metastore.
	QueueBrokerURL string `env:"QUEUE_BROKER_URL"`
	MetaDBPath     string `env:"META_DB_PATH" envDefault:"reports_meta.sqlite"`

	Blob BlobConfig

	ExportURLTTLSeconds int           `env:"EXPORT_URL_TTL_SECONDS" envDefault:"3600"`
	CacheTTLSeconds     int           `env:"CACHE_TTL_SECONDS" envDefault:"7200"`
	ExportWorkers       int           `env:"EXPORT_WORKERS" envDefault:"2"`
	ExportJobTimeout    time.Duration `env:"EXPORT_JOB_TIMEOUT" envDefault:"1h"`
	ExportPageSize      int           `env:"EXPORT_PAGE_SIZE" envDefault:"5000"`
	WarehouseMaxConns   int           `env:"WAREHOUSE_MAX_CONNS" envDefault:"10"`

	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Env             string        `env:"ENV" envDefault:"development"`
	JWTSecret       string        `env:"JWT_SECRET"`

	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"200"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Warnings collects non-fatal warnings generated during loading. They are
	// logged by the caller once the logger exists.
	Warnings []string
}

// Load reads the .env file at dotenvPath when it exists, then parses the
// environment. Variables already set take precedence over the file.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.JWTSecret == "" {
		c.JWTSecret = devJWTSecret
		c.Warnings = append(c.Warnings, "JWT_SECRET not set, using insecure default. Set JWT_SECRET in production!")
	}
	if c.Blob.SigningKey == "" {
		c.Blob.SigningKey = c.JWTSecret
	}
	if c.ExportURLTTL() > blob.ClampExpiry(c.ExportURLTTL()) {
		c.Warnings = append(c.Warnings, fmt.Sprintf("EXPORT_URL_TTL_SECONDS=%d exceeds one hour; download links are capped at 3600s", c.ExportURLTTLSeconds))
	}
	if c.DatabaseURL == "" {
		c.Warnings = append(c.Warnings, "DATABASE_URL not set; preview and export need a warehouse")
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Blob.Container) == "" {
		errs = append(errs, errors.New("BLOB_CONTAINER is required"))
	}
	switch c.Blob.Provider {
	case blob.ProviderLocal, blob.ProviderS3, blob.ProviderAzure, blob.ProviderGCS:
	default:
		errs = append(errs, fmt.Errorf("BLOB_PROVIDER %q is not one of local, s3, azure, gcs", c.Blob.Provider))
	}
	if c.Blob.Provider == blob.ProviderAzure && (c.Blob.AzureAccountName == "" || c.Blob.AzureAccountKey == "") {
		errs = append(errs, errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required for the azure provider"))
	}
	if c.Blob.Provider == blob.ProviderS3 && (c.Blob.S3KeyID == "" || c.Blob.S3Secret == "") {
		errs = append(errs, errors.New("S3_KEY_ID and S3_SECRET are required for the s3 provider"))
	}
	if !strings.HasPrefix(c.CacheURL, "redis://") && !strings.HasPrefix(c.CacheURL, "rediss://") && c.CacheURL != "memory://" {
		errs = append(errs, fmt.Errorf("CACHE_URL %q must be redis://, rediss:// or memory://", c.CacheURL))
	}
	if _, err := c.QueuePath(); err != nil {
		errs = append(errs, err)
	}
	if c.ExportURLTTLSeconds <= 0 {
		errs = append(errs, errors.New("EXPORT_URL_TTL_SECONDS must be positive"))
	}
	if c.CacheTTLSeconds <= 0 {
		errs = append(errs, errors.New("CACHE_TTL_SECONDS must be positive"))
	}
	if c.ExportWorkers < 1 {
		errs = append(errs, errors.New("EXPORT_WORKERS must be at least 1"))
	}
	if c.ExportJobTimeout <= 0 {
		errs = append(errs, errors.New("EXPORT_JOB_TIMEOUT must be positive"))
	}
	if c.ExportPageSize < 1 {
		errs = append(errs, errors.New("EXPORT_PAGE_SIZE must be at least 1"))
	}

	if c.IsProduction() {
		if c.JWTSecret == devJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in production (ENV=production)"))
		}
		if len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
			errs = append(errs, errors.New("CORS wildcard (*) is not allowed in production (ENV=production)"))
		}
	}
	return errors.Join(errs...)
}

// QueuePath returns the SQLite file of the task queue, or "" when tasks share
// the metastore.
func (c *Config) QueuePath() (string, error) {
	if c.QueueBrokerURL == "" {
		return "", nil
	}
	u, err := url.Parse(c.QueueBrokerURL)
	if err != nil || u.Scheme != "sqlite" {
		return "", fmt.Errorf("QUEUE_BROKER_URL %q must be sqlite://<path>", c.QueueBrokerURL)
	}
	path := u.Host + u.Path
	if path == "" {
		return "", fmt.Errorf("QUEUE_BROKER_URL %q has no path", c.QueueBrokerURL)
	}
	return path, nil
}

// ExportURLTTL is the requested lifetime of export download links.
func (c *Config) ExportURLTTL() time.Duration {
	return time.Duration(c.ExportURLTTLSeconds) * time.Second
}

// CacheTTL is the lifetime of compiled SQL cache entries.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
