// Package common provides shared utilities for gardensync
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for gardensync
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Chain       ChainConfig   `toml:"chain"`
	Indexer     IndexerConfig `toml:"indexer"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
	Backoff     BackoffConfig `toml:"backoff"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage configuration for the three durable stores.
type StorageConfig struct {
	Draft AreaConfig  `toml:"draft"` // DraftStore (BadgerHold)
	Job   SurrealArea `toml:"job"`   // JobStore (SurrealDB)
	Blob  BlobArea    `toml:"blob"`  // MediaUploader backing store
}

// AreaConfig holds path configuration for a BadgerHold-backed storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// SurrealArea holds connection configuration for a SurrealDB-backed area.
type SurrealArea struct {
	Endpoint  string `toml:"endpoint"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// BlobArea holds configuration for the content-addressed media store. Only
// the file backend is wired today; GCS/S3 fields are reserved for Phase 2.
type BlobArea struct {
	Backend string  `toml:"backend"` // "file" (only backend wired today)
	Path    string  `toml:"path"`
	GCS     GCSArea `toml:"gcs"`
	S3      S3Area  `toml:"s3"`
}

// GCSArea holds Google Cloud Storage configuration (Phase 2, unwired).
type GCSArea struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
}

// S3Area holds AWS S3 configuration (Phase 2, unwired).
type S3Area struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// ChainConfig holds the JSON-RPC chain endpoint configuration.
type ChainConfig struct {
	BaseURL          string `toml:"base_url"`
	RateLimit        int    `toml:"rate_limit"`
	Timeout          string `toml:"timeout"`
	RecipientAddress string `toml:"recipient_address"`
}

// GetTimeout parses and returns the timeout duration.
func (c *ChainConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IndexerConfig holds the indexer read API configuration.
type IndexerConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration.
func (c *IndexerConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AuthConfig holds JWT bearer-token verification configuration for the auth
// layer that attaches a signer capability to each inbound request.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// BackoffConfig holds the [backoff] retry settings loaded from TOML.
// JobRunner does not read them: its Transient retry delays come from the
// constants in internal/jobrunner/backoff.go.
type BackoffConfig struct {
	BaseMillis int     `toml:"base_millis"`
	Factor     float64 `toml:"factor"`
	CapSeconds int     `toml:"cap_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level" mapstructure:"level"`
	Format     string   `toml:"format" mapstructure:"format"`
	Outputs    []string `toml:"outputs" mapstructure:"outputs"`
	FilePath   string   `toml:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int      `toml:"max_backups" mapstructure:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Draft: AreaConfig{Path: "data/drafts"},
			Job: SurrealArea{
				Endpoint:  "ws://localhost:8000/rpc",
				Namespace: "gardensync",
				Database:  "gardensync",
			},
			Blob: BlobArea{
				Backend: "file",
				Path:    "data/media",
			},
		},
		Chain: ChainConfig{
			BaseURL:   "http://localhost:8545",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Indexer: IndexerConfig{
			BaseURL:   "http://localhost:4000",
			RateLimit: 20,
			Timeout:   "10s",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Backoff: BackoffConfig{
			BaseMillis: 1000,
			Factor:     2.0,
			CapSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/gardensync.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GARDENSYNC_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("GARDENSYNC_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("GARDENSYNC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("GARDENSYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("GARDENSYNC_DATA_PATH"); path != "" {
		config.Storage.Draft.Path = filepath.Join(path, "drafts")
		config.Storage.Blob.Path = filepath.Join(path, "media")
	}

	if v := os.Getenv("GARDENSYNC_CHAIN_BASE_URL"); v != "" {
		config.Chain.BaseURL = v
	}
	if v := os.Getenv("GARDENSYNC_INDEXER_BASE_URL"); v != "" {
		config.Indexer.BaseURL = v
	}
	if v := os.Getenv("GARDENSYNC_SURREALDB_ENDPOINT"); v != "" {
		config.Storage.Job.Endpoint = v
	}
	if v := os.Getenv("GARDENSYNC_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("GARDENSYNC_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
