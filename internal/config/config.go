package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tradefoox/deckvault/internal/webhooks"
)

// Store backends
const (
	StoreBackendJSON     = "json"
	StoreBackendSQLite   = "sqlite"
	StoreBackendPostgres = "postgres"
)

// Blob storage backends
const (
	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

// PostgreSQLConfig holds connection settings for the postgres store backend
type PostgreSQLConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	AutoMigrate    bool   `yaml:"auto_migrate"`
}

// S3Config holds settings for the s3 blob storage backend
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	StorageQuota    int64  `yaml:"storage_quota"` // bytes, 0 = unlimited
}

// Config holds all application configuration
type Config struct {
	Port      string `yaml:"port"`
	DataFile  string `yaml:"data_file"`  // JSON registry file (json backend)
	UploadDir string `yaml:"upload_dir"` // Server-uploaded blobs (filesystem backend)
	StaticDir string `yaml:"static_dir"` // Public site root; local PDFs resolve against it
	PublicURL string `yaml:"public_url"` // Optional: base for share links behind a reverse proxy

	// Exactly one is normally set. The hash (bcrypt) wins when both are present.
	AdminToken     string `yaml:"admin_token"`
	AdminTokenHash string `yaml:"admin_token_hash"`

	StoreBackend string           `yaml:"store_backend"`
	DBPath       string           `yaml:"db_path"` // SQLite file (sqlite backend)
	PostgreSQL   PostgreSQLConfig `yaml:"postgres"`

	StorageBackend string   `yaml:"storage_backend"`
	S3             S3Config `yaml:"s3"`

	MaxUploadSize      int64    `yaml:"max_upload_size"`
	RateLimitDownload  int      `yaml:"rate_limit_download"` // download attempts per hour per IP
	RateLimitAdmin     int      `yaml:"rate_limit_admin"`    // admin write requests per hour per IP
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	TrustProxyHeaders string `yaml:"trust_proxy_headers"` // auto, true, false
	TrustedProxyIPs   string `yaml:"trusted_proxy_ips"`

	// Access notifications. WEBHOOK_URL in the environment appends one endpoint.
	Webhooks         []webhooks.Endpoint `yaml:"webhooks"`
	WebhookWorkers   int                 `yaml:"webhook_workers"`
	WebhookQueueSize int                 `yaml:"webhook_queue_size"`

	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	LogLevel            string `yaml:"log_level"`
}

// Load reads configuration with sensible defaults.
// Values come from, in increasing precedence: built-in defaults, the YAML
// file named by CONFIG_FILE, and environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:                "3001",
		DataFile:            "./files-db.json",
		UploadDir:           "./uploads",
		StaticDir:           "./public",
		StoreBackend:        StoreBackendJSON,
		DBPath:              "./deckvault.db",
		PostgreSQL:          PostgreSQLConfig{MaxConnections: 10, AutoMigrate: true},
		StorageBackend:      StorageBackendFilesystem,
		MaxUploadSize:       50 * 1024 * 1024, // 50MB
		RateLimitDownload:   120,
		RateLimitAdmin:      300,
		CORSAllowedOrigins:  []string{"*"},
		TrustProxyHeaders:   "auto",
		TrustedProxyIPs:     "127.0.0.1,::1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16",
		WebhookWorkers:      2,
		WebhookQueueSize:    256,
		ReadTimeoutSeconds:  30,
		WriteTimeoutSeconds: 300, // large PDFs over slow links
		LogLevel:            "info",
	}
}

// loadFile overlays values present in a YAML file onto cfg
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnv overrides cfg with any environment variables that are set
func (c *Config) loadEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataFile = getEnv("DATA_FILE", c.DataFile)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.PublicURL = getEnv("PUBLIC_URL", c.PublicURL)
	c.AdminToken = getEnv("ADMIN_TOKEN", c.AdminToken)
	c.AdminTokenHash = getEnv("ADMIN_TOKEN_HASH", c.AdminTokenHash)

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.PostgreSQL.URL = getEnv("DATABASE_URL", c.PostgreSQL.URL)
	c.PostgreSQL.MaxConnections = getEnvInt("POSTGRES_MAX_CONNS", c.PostgreSQL.MaxConnections)
	c.PostgreSQL.AutoMigrate = getEnvBool("POSTGRES_AUTO_MIGRATE", c.PostgreSQL.AutoMigrate)

	c.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", c.StorageBackend))
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
	c.S3.PathStyle = getEnvBool("S3_PATH_STYLE", c.S3.PathStyle)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)
	c.S3.StorageQuota = getEnvInt64("S3_STORAGE_QUOTA", c.S3.StorageQuota)

	c.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", c.MaxUploadSize)
	c.RateLimitDownload = getEnvInt("RATE_LIMIT_DOWNLOAD", c.RateLimitDownload)
	c.RateLimitAdmin = getEnvInt("RATE_LIMIT_ADMIN", c.RateLimitAdmin)
	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.TrustProxyHeaders = strings.ToLower(getEnv("TRUST_PROXY_HEADERS", c.TrustProxyHeaders))
	c.TrustedProxyIPs = getEnv("TRUSTED_PROXY_IPS", c.TrustedProxyIPs)

	if u := os.Getenv("WEBHOOK_URL"); u != "" {
		c.Webhooks = append(c.Webhooks, webhooks.Endpoint{
			URL:          u,
			Secret:       os.Getenv("WEBHOOK_SECRET"),
			ServiceToken: os.Getenv("WEBHOOK_SERVICE_TOKEN"),
			Format:       webhooks.Format(strings.ToLower(os.Getenv("WEBHOOK_FORMAT"))),
			Events:       getEnvList("WEBHOOK_EVENTS", nil),
		})
	}
	c.WebhookWorkers = getEnvInt("WEBHOOK_WORKERS", c.WebhookWorkers)
	c.WebhookQueueSize = getEnvInt("WEBHOOK_QUEUE_SIZE", c.WebhookQueueSize)

	c.ReadTimeoutSeconds = getEnvInt("READ_TIMEOUT_SECONDS", c.ReadTimeoutSeconds)
	c.WriteTimeoutSeconds = getEnvInt("WRITE_TIMEOUT_SECONDS", c.WriteTimeoutSeconds)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.StaticDir == "" {
		return fmt.Errorf("STATIC_DIR cannot be empty")
	}

	if c.AdminToken == "" && c.AdminTokenHash == "" {
		return fmt.Errorf("ADMIN_TOKEN or ADMIN_TOKEN_HASH must be set")
	}

	if c.AdminTokenHash != "" && !strings.HasPrefix(c.AdminTokenHash, "$2") {
		return fmt.Errorf("ADMIN_TOKEN_HASH must be a bcrypt hash")
	}

	switch c.StoreBackend {
	case StoreBackendJSON:
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE cannot be empty")
		}
	case StoreBackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StoreBackendPostgres:
		if c.PostgreSQL.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
		if c.PostgreSQL.MaxConnections <= 0 {
			return fmt.Errorf("POSTGRES_MAX_CONNS must be positive, got %d", c.PostgreSQL.MaxConnections)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of json, sqlite, postgres, got %q", c.StoreBackend)
	}

	switch c.StorageBackend {
	case StorageBackendFilesystem:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR cannot be empty")
		}
	case StorageBackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
		if c.S3.StorageQuota < 0 {
			return fmt.Errorf("S3_STORAGE_QUOTA cannot be negative, got %d", c.S3.StorageQuota)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of filesystem, s3, got %q", c.StorageBackend)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}

	if c.RateLimitDownload <= 0 {
		return fmt.Errorf("RATE_LIMIT_DOWNLOAD must be positive, got %d", c.RateLimitDownload)
	}

	if c.RateLimitAdmin <= 0 {
		return fmt.Errorf("RATE_LIMIT_ADMIN must be positive, got %d", c.RateLimitAdmin)
	}

	switch c.TrustProxyHeaders {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("TRUST_PROXY_HEADERS must be auto, true or false, got %q", c.TrustProxyHeaders)
	}

	for i := range c.Webhooks {
		if err := c.Webhooks[i].Validate(); err != nil {
			return fmt.Errorf("webhook %d: %w", i+1, err)
		}
	}
	if len(c.Webhooks) > 0 && (c.WebhookWorkers <= 0 || c.WebhookQueueSize <= 0) {
		return fmt.Errorf("WEBHOOK_WORKERS and WEBHOOK_QUEUE_SIZE must be positive")
	}

	if c.ReadTimeoutSeconds <= 0 || c.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("READ_TIMEOUT_SECONDS and WRITE_TIMEOUT_SECONDS must be positive")
	}

	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// GetRateLimitDownload returns the per-IP hourly download limit
func (c *Config) GetRateLimitDownload() int {
	return c.RateLimitDownload
}

// GetRateLimitAdmin returns the per-IP hourly admin write limit
func (c *Config) GetRateLimitAdmin() int {
	return c.RateLimitAdmin
}

// GetTrustProxyHeaders returns the proxy header trust mode (auto, true, false)
func (c *Config) GetTrustProxyHeaders() string {
	return c.TrustProxyHeaders
}

// GetTrustedProxyIPs returns the comma-separated proxy IPs and CIDR ranges
func (c *Config) GetTrustedProxyIPs() string {
	return c.TrustedProxyIPs
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLogLevel(c.LogLevel)
	return level
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated list from an environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
