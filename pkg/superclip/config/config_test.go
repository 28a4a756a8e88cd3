package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5173", cfg.Addr())
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "fs", cfg.StorageBackend)
	assert.Equal(t, 10, cfg.DefaultMaxDownloads)
	assert.Equal(t, 500, cfg.MaxAllowedDownloads)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())
	assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSizeBytes)
	assert.Equal(t, 720, cfg.TokenExpiryHours)
	assert.Empty(t, cfg.CaptchaProvider)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("SUPER_CLIPBOARD_APP_PORT", "9090")
	t.Setenv("SUPER_CLIPBOARD_DATABASE_TYPE", "memory")
	t.Setenv("SUPER_CLIPBOARD_STORAGE_BACKEND", "memory")
	t.Setenv("SUPER_CLIPBOARD_DEFAULT_MAX_DOWNLOADS", "3")
	t.Setenv("SUPER_CLIPBOARD_LOG_FORMAT", "json")
	t.Setenv("SUPER_CLIPBOARD_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 3, cfg.DefaultMaxDownloads)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	// Unset variables keep their defaults.
	assert.Equal(t, 500, cfg.MaxAllowedDownloads)
}

func TestLoadWithOptions(t *testing.T) {
	cfg, err := Load(func(c *ServerConfig) error {
		c.Port = 8088
		c.DatabaseType = "memory"
		c.StorageBackend = "memory"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8088", cfg.Addr())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		message string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *ServerConfig) { c.Port = 0 },
			message: "port",
		},
		{
			name:    "unknown database type",
			mutate:  func(c *ServerConfig) { c.DatabaseType = "mongodb" },
			message: "database_type",
		},
		{
			name: "sqlite without path",
			mutate: func(c *ServerConfig) {
				c.DatabaseType = "sqlite"
				c.DatabasePath = ""
			},
			message: "database_path",
		},
		{
			name: "postgres without url",
			mutate: func(c *ServerConfig) {
				c.DatabaseType = "postgres"
				c.DatabaseURL = ""
			},
			message: "database_url",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *ServerConfig) { c.StorageBackend = "ftp" },
			message: "storage_backend",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *ServerConfig) {
				c.StorageBackend = "s3"
				c.S3Bucket = ""
			},
			message: "s3_bucket",
		},
		{
			name: "max below default",
			mutate: func(c *ServerConfig) {
				c.DefaultMaxDownloads = 100
				c.MaxAllowedDownloads = 10
			},
			message: "max_allowed_downloads",
		},
		{
			name:    "unknown captcha provider",
			mutate:  func(c *ServerConfig) { c.CaptchaProvider = "hcaptcha" },
			message: "captcha_provider",
		},
		{
			name: "captcha without secret",
			mutate: func(c *ServerConfig) {
				c.CaptchaProvider = "turnstile"
				c.CaptchaSecret = ""
			},
			message: "captcha_secret",
		},
		{
			name:    "bad log format",
			mutate:  func(c *ServerConfig) { c.LogFormat = "xml" },
			message: "log_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLimits(t *testing.T) {
	cfg := defaults()
	cfg.DefaultMaxDownloads = 4
	cfg.MaxAllowedDownloads = 40
	cfg.MaxFileSizeBytes = 1024
	cfg.TokenExpiryHours = 2

	limits := cfg.Limits()
	assert.Equal(t, 4, limits.DefaultMaxDownloads)
	assert.Equal(t, 40, limits.MaxAllowedDownloads)
	assert.Equal(t, int64(1024), limits.MaxFileSize)
	assert.Equal(t, 2*time.Hour, limits.TokenTTL)
}

func TestRequestBodyLimit(t *testing.T) {
	cfg := defaults()
	cfg.MaxFileSizeBytes = 1000

	// Base64 inflation plus JSON envelope headroom.
	assert.Greater(t, cfg.RequestBodyLimit(), int64(1000*4/3))
}

func TestBuildService(t *testing.T) {
	t.Run("memory stack", func(t *testing.T) {
		cfg := defaults()
		cfg.DatabaseType = "memory"
		cfg.StorageBackend = "memory"

		svc, err := cfg.BuildService()
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("sqlite stack", func(t *testing.T) {
		cfg := defaults()
		cfg.DatabaseType = "sqlite"
		cfg.DatabasePath = filepath.Join(t.TempDir(), "db", "clips.db")
		cfg.StorageBackend = "memory"

		svc, err := cfg.BuildService()
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestBuildLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			cfg := defaults()
			cfg.LogFormat = format
			assert.NotNil(t, cfg.BuildLogger())
		})
	}
}
