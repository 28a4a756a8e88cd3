package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
	"github.com/pixia1234/super-clipboard/pkg/superclip/captcha"
	repomemory "github.com/pixia1234/super-clipboard/pkg/superclip/repo/memory"
	repopg "github.com/pixia1234/super-clipboard/pkg/superclip/repo/postgres"
	reposqlite "github.com/pixia1234/super-clipboard/pkg/superclip/repo/sqlite"
	fsstorage "github.com/pixia1234/super-clipboard/pkg/superclip/storage/fs"
	memorystorage "github.com/pixia1234/super-clipboard/pkg/superclip/storage/memory"
	s3storage "github.com/pixia1234/super-clipboard/pkg/superclip/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on
// top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Host:                   "0.0.0.0",
		Port:                   5173,
		DatabaseType:           "sqlite",
		DatabasePath:           "storage/clipboard.db",
		StorageBackend:         "fs",
		FileStorageDir:         "storage/files",
		S3Region:               "us-east-1",
		S3SSEAlgorithm:         "AES256",
		DefaultMaxDownloads:    10,
		MaxAllowedDownloads:    500,
		CleanupIntervalSeconds: 300,
		MaxFileSizeBytes:       50 * 1024 * 1024,
		TokenExpiryHours:       720,
		StaticRoot:             "dist",
		CaptchaTimeoutSeconds:  6,
		LogFormat:              "text",
		LogLevel:               "info",
	}
}

// WithEnv overrides configuration from SUPER_CLIPBOARD_* environment
// variables. Unset variables leave the current values untouched.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// ServerConfig represents server configuration for the super-clipboard
// service.
type ServerConfig struct {
	Host string `env:"SUPER_CLIPBOARD_APP_HOST"`
	Port int    `env:"SUPER_CLIPBOARD_APP_PORT"`

	// Database configuration
	DatabaseType string `env:"SUPER_CLIPBOARD_DATABASE_TYPE"` // "memory", "sqlite", "postgres"
	DatabasePath string `env:"SUPER_CLIPBOARD_DATABASE_PATH"` // sqlite file location
	DatabaseURL  string `env:"SUPER_CLIPBOARD_DATABASE_URL"`  // postgres connection string

	// Blob storage configuration
	StorageBackend         string `env:"SUPER_CLIPBOARD_STORAGE_BACKEND"` // "memory", "fs", "s3"
	FileStorageDir         string `env:"SUPER_CLIPBOARD_FILE_STORAGE_DIR"`
	S3Region               string `env:"SUPER_CLIPBOARD_S3_REGION"`
	S3Bucket               string `env:"SUPER_CLIPBOARD_S3_BUCKET"`
	S3AccessKeyID          string `env:"SUPER_CLIPBOARD_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey      string `env:"SUPER_CLIPBOARD_S3_SECRET_ACCESS_KEY"`
	S3Endpoint             string `env:"SUPER_CLIPBOARD_S3_ENDPOINT"`
	S3UsePathStyle         bool   `env:"SUPER_CLIPBOARD_S3_USE_PATH_STYLE"`
	S3EnableSSE            bool   `env:"SUPER_CLIPBOARD_S3_ENABLE_SSE"`
	S3SSEAlgorithm         string `env:"SUPER_CLIPBOARD_S3_SSE_ALGORITHM"`
	S3SSEKMSKeyID          string `env:"SUPER_CLIPBOARD_S3_SSE_KMS_KEY_ID"`
	S3CreateBucketIfAbsent bool   `env:"SUPER_CLIPBOARD_S3_CREATE_BUCKET_IF_NOT_EXIST"`

	// Clip lifecycle bounds
	DefaultMaxDownloads    int   `env:"SUPER_CLIPBOARD_DEFAULT_MAX_DOWNLOADS"`
	MaxAllowedDownloads    int   `env:"SUPER_CLIPBOARD_MAX_ALLOWED_DOWNLOADS"`
	CleanupIntervalSeconds int   `env:"SUPER_CLIPBOARD_CLEANUP_INTERVAL_SECONDS"`
	MaxFileSizeBytes       int64 `env:"SUPER_CLIPBOARD_MAX_FILE_SIZE_BYTES"`
	TokenExpiryHours       int   `env:"SUPER_CLIPBOARD_TOKEN_EXPIRY_HOURS"`

	// Frontend bundle location, served when present
	StaticRoot string `env:"SUPER_CLIPBOARD_STATIC_ROOT"`

	// Origins granted CORS access; empty means any origin, since share
	// links are opened from arbitrary pages.
	AllowedOrigins []string `env:"SUPER_CLIPBOARD_ALLOWED_ORIGINS"`

	// Captcha verification, disabled when no provider is set
	CaptchaProvider       string  `env:"SUPER_CLIPBOARD_CAPTCHA_PROVIDER"` // "turnstile", "recaptcha"
	CaptchaSecret         string  `env:"SUPER_CLIPBOARD_CAPTCHA_SECRET"`
	CaptchaBypassToken    string  `env:"SUPER_CLIPBOARD_CAPTCHA_BYPASS_TOKEN"`
	CaptchaTimeoutSeconds float64 `env:"SUPER_CLIPBOARD_CAPTCHA_TIMEOUT_SECONDS"`

	// Logging
	LogFormat string `env:"SUPER_CLIPBOARD_LOG_FORMAT"` // "text", "json"
	LogLevel  string `env:"SUPER_CLIPBOARD_LOG_LEVEL"`  // "debug", "info", "warn", "error"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch c.DatabaseType {
	case "memory":
	case "sqlite":
		if c.DatabasePath == "" {
			return errors.New("database_path is required when using sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory', 'sqlite' or 'postgres'")
	}

	switch c.StorageBackend {
	case "memory":
	case "fs":
		if c.FileStorageDir == "" {
			return errors.New("file_storage_dir is required when using fs storage")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_backend must be 'memory', 'fs' or 's3'")
	}

	if c.DefaultMaxDownloads < 1 {
		return errors.New("default_max_downloads must be at least 1")
	}
	if c.MaxAllowedDownloads < c.DefaultMaxDownloads {
		return errors.New("max_allowed_downloads must not be below default_max_downloads")
	}
	if c.CleanupIntervalSeconds < 1 {
		return errors.New("cleanup_interval_seconds must be at least 1")
	}
	if c.MaxFileSizeBytes < 1 {
		return errors.New("max_file_size_bytes must be at least 1")
	}
	if c.TokenExpiryHours < 1 {
		return errors.New("token_expiry_hours must be at least 1")
	}

	provider := strings.ToLower(strings.TrimSpace(c.CaptchaProvider))
	if provider != "" && provider != captcha.ProviderTurnstile && provider != captcha.ProviderRecaptcha {
		return errors.New("captcha_provider must be 'turnstile' or 'recaptcha'")
	}
	if provider != "" && strings.TrimSpace(c.CaptchaSecret) == "" {
		return errors.New("captcha_secret is required when a captcha provider is set")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.New("log_format must be 'text' or 'json'")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log_level must be 'debug', 'info', 'warn' or 'error'")
	}

	return nil
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Limits returns the clip lifecycle bounds derived from the
// configuration.
func (c *ServerConfig) Limits() superclip.Limits {
	return superclip.Limits{
		DefaultMaxDownloads: c.DefaultMaxDownloads,
		MaxAllowedDownloads: c.MaxAllowedDownloads,
		MaxFileSize:         c.MaxFileSizeBytes,
		TokenTTL:            superclip.TokenTTLFromHours(c.TokenExpiryHours),
	}
}

// CleanupInterval returns how often the background reaper runs.
func (c *ServerConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// RequestBodyLimit returns the maximum accepted request body size.
// Uploads arrive base64-encoded inside JSON, so the limit leaves
// headroom above the raw file cap.
func (c *ServerConfig) RequestBodyLimit() int64 {
	return c.MaxFileSizeBytes*2 + 1024*1024
}

// BuildLogger creates a logger per the configured format and level.
func (c *ServerConfig) BuildLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)
	var handler slog.Handler
	switch c.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuildService creates a Service instance from the server
// configuration.
func (c *ServerConfig) BuildService() (superclip.Service, error) {
	store, err := c.buildStorageBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	repo, err := c.buildRepository(store)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	options := []superclip.Option{
		superclip.WithRepository(repo),
		superclip.WithBlobStore(store),
		superclip.WithLimits(c.Limits()),
	}

	verifier, err := c.buildCaptchaVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to build captcha verifier: %w", err)
	}
	if verifier != nil {
		options = append(options, superclip.WithCaptchaVerifier(verifier))
	}

	return superclip.New(options...)
}

// buildRepository creates a Repository based on the configuration.
// The blob store is handed down so removed clips drop their stored
// bytes as well.
func (c *ServerConfig) buildRepository(blobs superclip.BlobStore) (superclip.Repository, error) {
	limits := c.Limits()

	switch c.DatabaseType {
	case "memory":
		return repomemory.New(repomemory.Config{Blobs: blobs, Limits: limits}), nil
	case "sqlite":
		if dir := filepath.Dir(c.DatabasePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return reposqlite.Open(reposqlite.Config{
			Path:   c.DatabasePath,
			Blobs:  blobs,
			Limits: limits,
		})
	case "postgres":
		pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		repo := repopg.NewWithPool(pool, repopg.Config{Blobs: blobs, Limits: limits})
		if err := repo.EnsureSchema(context.Background()); err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorageBackend creates a BlobStore based on the configuration.
func (c *ServerConfig) buildStorageBackend() (superclip.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: c.FileStorageDir,
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			EnableSSE:              c.S3EnableSSE,
			SSEAlgorithm:           c.S3SSEAlgorithm,
			SSEKMSKeyID:            c.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3CreateBucketIfAbsent,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageBackend)
	}
}

// buildCaptchaVerifier creates a verifier when a provider is
// configured, nil otherwise.
func (c *ServerConfig) buildCaptchaVerifier() (superclip.CaptchaVerifier, error) {
	provider := strings.ToLower(strings.TrimSpace(c.CaptchaProvider))
	if provider == "" {
		return nil, nil
	}
	return captcha.New(captcha.Config{
		Provider:    provider,
		Secret:      strings.TrimSpace(c.CaptchaSecret),
		BypassToken: strings.TrimSpace(c.CaptchaBypassToken),
		Timeout:     time.Duration(c.CaptchaTimeoutSeconds * float64(time.Second)),
	})
}

// PingPostgres verifies connectivity to Postgres before the server
// starts serving traffic.
func PingPostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
