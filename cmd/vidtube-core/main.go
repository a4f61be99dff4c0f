package main

// @title           VidTube Core API
// @version         1.0
// @description     Account registration and session management API with rotating refresh tokens.

// @contact.name   VidTube OSS
// @contact.url    https://github.com/custodia-labs/vidtube-core/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token. Format: "Bearer {token}". The accessToken cookie is accepted as well.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/vidtube-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/vidtube-core/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/vidtube-core/internal/adapters/driven/redis"
	s3adapter "github.com/custodia-labs/vidtube-core/internal/adapters/driven/s3"
	"github.com/custodia-labs/vidtube-core/internal/adapters/driving/http"
	"github.com/custodia-labs/vidtube-core/internal/config"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
	"github.com/custodia-labs/vidtube-core/internal/core/services"
	"github.com/custodia-labs/vidtube-core/internal/worker"
)

var version = "dev"

func main() {
	// Optional .env for local development; real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vidtube-core exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Version == "" {
		cfg.Version = version
	}
	logger.Info("vidtube-core starting", "version", cfg.Version)

	// PostgreSQL
	logger.Info("connecting to postgres")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("postgres connected and migrated")

	// Rotation lock: Redis when configured. Without it, rotation relies on the
	// store's compare-and-swap alone.
	var lock driven.DistributedLock
	var redisPinger http.Pinger
	if cfg.RedisURL != "" {
		logger.Info("connecting to redis")
		redisClient, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		redisLock := redisadapter.NewLock(redisClient)
		lock = redisLock
		redisPinger = redisLock
		logger.Info("using redis rotation lock", "instance", redisLock.InstanceID())
	} else {
		logger.Info("no redis configured, refresh rotation relies on store compare-and-swap")
	}

	// Media storage
	s3Cfg := s3adapter.Config{
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		PublicURL: cfg.S3.PublicURL,
	}
	s3Client, err := s3adapter.NewClient(ctx, s3Cfg)
	if err != nil {
		return err
	}
	mediaStore := s3adapter.NewMediaStore(s3Client, s3Cfg)

	// Credentials and tokens
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.Tokens.AccessSecret,
		AccessTTL:     cfg.Tokens.AccessExpiry,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		RefreshTTL:    cfg.Tokens.RefreshExpiry,
		Issuer:        "vidtube-core",
	})
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	sessions := services.NewSessionManager(services.SessionManagerConfig{
		UserStore:     postgres.NewUserStore(db),
		Hasher:        auth.NewPasswordHasherWithCost(cfg.BcryptCost),
		Tokens:        tokens,
		MediaStore:    mediaStore,
		Lock:          lock,
		Logger:        logger,
		StoreTimeout:  cfg.StoreTimeout,
		UploadTimeout: cfg.UploadTimeout,
		LockTTL:       cfg.LockTTL,
	})

	janitor := worker.NewUploadJanitor(worker.UploadJanitorConfig{
		Dir:    cfg.UploadDir,
		MaxAge: cfg.UploadMaxAge,
		Logger: logger,
	})
	janitor.Start(ctx)
	defer janitor.Stop()

	server := http.NewServer(http.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		Version:       cfg.Version,
		CORSOrigin:    cfg.CORSOrigin,
		UploadDir:     cfg.UploadDir,
		MaxUploadSize: cfg.MaxUploadSize,
	}, sessions, db, redisPinger, logger)

	return server.Run(ctx)
}
