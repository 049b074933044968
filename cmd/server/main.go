package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "agenthub/docs" // swagger docs

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"agenthub/internal/auth"
	"agenthub/internal/cache"
	"agenthub/internal/config"
	"agenthub/internal/db"
	"agenthub/internal/handler"
	"agenthub/internal/llm"
	"agenthub/internal/ratelimit"
	"agenthub/internal/repository"
	"agenthub/internal/router"
	"agenthub/internal/service"
	"agenthub/internal/storage"
)

// @title agenthub API
// @version 1.0
// @description Multi-tenant chatbot backend: projects, chat with a language model, and file attachments.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if cfg.ResetDB {
		slog.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Fatalf("reset database: %v", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("%v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		slog.Warn("redis unreachable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
	}
	cancelPing()

	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	var chatLimiter *ratelimit.FixedWindowLimiter
	if cfg.ChatRateLimitPerMinute > 0 {
		chatLimiter, err = ratelimit.NewFixedWindowLimiter(cacheClient.Redis(), "agenthub:chat", cfg.ChatRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("rate limiter: %v", err)
		}
	}

	llmClient := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	if err := llmClient.Ready(); err != nil {
		slog.Warn("language model not configured, chat requests will fail", "error", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	projectRepo := repository.NewProjectRepository(gormDB)
	messageRepo := repository.NewMessageRepository(gormDB)
	fileRepo := repository.NewFileRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, cacheClient)
	projectService := service.NewProjectService(projectRepo, messageRepo, blobs)
	chatService := service.NewChatService(projectRepo, messageRepo, llmClient)
	fileService := service.NewFileService(projectRepo, fileRepo, blobs, service.FilePolicy{
		MaxBytes:     cfg.MaxUploadBytes,
		AllowedTypes: cfg.AllowedMimeTypes,
	})

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, router.Deps{
		JWTService:     jwtService,
		AuthService:    authService,
		ChatLimiter:    chatLimiter,
		AuthHandler:    handler.NewAuthHandler(authService),
		ProjectHandler: handler.NewProjectHandler(projectService),
		ChatHandler:    handler.NewChatHandler(chatService),
		FileHandler:    handler.NewFileHandler(fileService),
	})

	slog.Info("Swagger documentation available", "url", cfg.SwaggerURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		slog.Info("server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	if cfg.StorageDriver == "minio" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.UploadDir)
}
