package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 30, cfg.ChatRateLimitPerMinute)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.AllowedMimeTypes, "application/pdf")
	assert.Empty(t, cfg.LLMAPIKey)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ALLOWED_MIME_TYPES", "text/plain")
	t.Setenv("CHAT_RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "minio", cfg.StorageDriver)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"text/plain"}, cfg.AllowedMimeTypes)
	assert.Zero(t, cfg.ChatRateLimitPerMinute)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown database driver", key: "DB_DRIVER", value: "oracle"},
		{name: "unknown storage driver", key: "STORAGE_DRIVER", value: "s3"},
		{name: "blank secret", key: "JWT_SECRET", value: "   "},
		{name: "negative expiry", key: "JWT_EXPIRY", value: "-1h"},
		{name: "zero upload cap", key: "MAX_UPLOAD_BYTES", value: "0"},
		{name: "unparsable number", key: "REDIS_DB", value: "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSwaggerURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "", want: "http://localhost:8080/swagger/index.html"},
		{host: "api.example.com", want: "http://api.example.com/swagger/index.html"},
		{host: "https://api.example.com", want: "https://api.example.com/swagger/index.html"},
	}
	for _, tt := range tests {
		cfg := &Config{ServerPort: "8080", SwaggerHost: tt.host}
		assert.Equal(t, tt.want, cfg.SwaggerURL())
	}
}
