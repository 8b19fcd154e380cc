package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"flashcards/internal/config"
	"flashcards/internal/crypto"
	"flashcards/internal/gemini"
	"flashcards/internal/pdftext"
	"flashcards/internal/ratelimit"
	"flashcards/internal/repository"
	"flashcards/internal/server"
	"flashcards/internal/service"
	"flashcards/internal/storage"
	"flashcards/internal/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "configs/config.yml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// The logger format comes from config, so this one failure goes through a default logger.
		logger, _ := zap.NewDevelopment()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Log.Format == "json" {
		logger, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting flashcards server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	if cfg.Database.Driver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.URL), 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}
	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	hasher, err := crypto.NewPasswordHasher(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		logger.Fatal("Failed to initialize password hasher", zap.Error(err))
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.JWT.Secret,
		Algorithm:  cfg.JWT.Algorithm,
		AccessTTL:  cfg.AccessTokenTTL(),
		RefreshTTL: cfg.RefreshTokenTTL(),
	})
	if err != nil {
		logger.Fatal("Failed to initialize token manager", zap.Error(err))
	}

	// Rate limiters are shared through Redis when it is configured.
	loginLimiter, geminiLimiter := newLimiters(ctx, cfg, logger)

	var generator service.Generator
	var generatorInfo map[string]interface{}
	if cfg.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			ModelName:  cfg.Gemini.ModelName,
			MaxRetries: cfg.Gemini.MaxRetries,
			RetryDelay: cfg.Gemini.RetryDelay,
		}, geminiLimiter, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		defer geminiClient.Close()
		generator = geminiClient
		generatorInfo = geminiClient.ModelInfo()
	} else {
		logger.Warn("Gemini API key not configured, PDF upload is disabled")
	}

	var archiver storage.Archiver = storage.Nop{}
	if cfg.S3.Enabled {
		s3Archiver, err := storage.NewS3Archiver(ctx, storage.S3Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			AccessKeyID:    cfg.S3.AccessKeyID,
			SecretKey:      cfg.S3.SecretKey,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			logger.Fatal("Failed to initialize S3 archiver", zap.Error(err))
		}
		archiver = s3Archiver
		logger.Info("Archiving uploads to S3", zap.String("bucket", cfg.S3.Bucket))
	}

	// Initialize repositories and services
	userRepo := repository.NewUserRepository(db, logger)
	flashcardRepo := repository.NewFlashcardRepository(db, logger)
	sessionRepo := repository.NewStudySessionRepository(db, logger)

	srv := server.NewServer(server.Config{
		Port:              cfg.Server.Port,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, server.Deps{
		Auth:       service.NewAuthService(userRepo, hasher, tokens, loginLimiter, logger),
		Flashcards: service.NewFlashcardService(flashcardRepo, logger),
		Study:      service.NewStudyService(sessionRepo, logger),
		Ingest: service.NewIngestService(flashcardRepo, pdftext.NewExtractor(), generator, archiver, service.IngestConfig{
			MaxUploadSize:   cfg.Upload.MaxSize,
			DefaultNumCards: cfg.Upload.DefaultNumCards,
		}, logger),
		DB:            db,
		GeneratorInfo: generatorInfo,
		MaxUploadSize: cfg.Upload.MaxSize,
		Logger:        logger,
	})

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}
}

func newLimiters(ctx context.Context, cfg *config.Config, logger *zap.Logger) (login, generate ratelimit.Limiter) {
	if cfg.Redis.URL != "" {
		client, err := ratelimit.Connect(ctx, cfg.Redis.URL, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		login, err = ratelimit.NewRedis(client, "flashcards:login", cfg.Login.MaxAttempts, cfg.Login.Window)
		if err != nil {
			logger.Fatal("Failed to initialize login limiter", zap.Error(err))
		}
		generate, err = ratelimit.NewRedis(client, "flashcards:gemini", cfg.Gemini.RequestsPerMinute, time.Minute)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini limiter", zap.Error(err))
		}
		logger.Info("Using Redis rate limiters")
		return login, generate
	}

	login, err := ratelimit.NewMemory(cfg.Login.MaxAttempts, cfg.Login.Window)
	if err != nil {
		logger.Fatal("Failed to initialize login limiter", zap.Error(err))
	}
	generate, err = ratelimit.NewMemory(cfg.Gemini.RequestsPerMinute, time.Minute)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini limiter", zap.Error(err))
	}
	return login, generate
}
