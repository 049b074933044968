package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DBDriver    string `env:"DB_DRIVER" envDefault:"mysql"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"user:password@tcp(localhost:3306)/agenthub?charset=utf8mb4&parseTime=True&loc=UTC"`
	ResetDB     bool   `env:"RESET_DB" envDefault:"false"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	// Sessions
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`

	// Language model
	LLMBaseURL string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMAPIKey  string        `env:"LLM_API_KEY"`
	LLMModel   string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	// HTTP
	AllowedOrigins         []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	ChatRateLimitPerMinute int      `env:"CHAT_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	SwaggerHost            string   `env:"SWAGGER_HOST"`

	// Uploads
	StorageDriver    string   `env:"STORAGE_DRIVER" envDefault:"local"`
	UploadDir        string   `env:"UPLOAD_DIR" envDefault:"./uploads"`
	MinioEndpoint    string   `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey   string   `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey   string   `env:"MINIO_SECRET_KEY"`
	MinioBucket      string   `env:"MINIO_BUCKET" envDefault:"agenthub-files"`
	MinioUseSSL      bool     `env:"MINIO_USE_SSL" envDefault:"false"`
	MaxUploadBytes   int64    `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	AllowedMimeTypes []string `env:"ALLOWED_MIME_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/gif,image/webp,application/pdf,text/plain,text/markdown,text/csv,application/json,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document"`
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// SwaggerURL returns where the API docs are served.
func (c *Config) SwaggerURL() string {
	if c.SwaggerHost == "" {
		return "http://localhost:" + c.ServerPort + "/swagger/index.html"
	}
	if strings.HasPrefix(c.SwaggerHost, "http://") || strings.HasPrefix(c.SwaggerHost, "https://") {
		return c.SwaggerHost + "/swagger/index.html"
	}
	return "http://" + c.SwaggerHost + "/swagger/index.html"
}
