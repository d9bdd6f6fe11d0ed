package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"videotasks/api/auth"
	"videotasks/api/cache"
	"videotasks/api/config"
	"videotasks/api/database"
	"videotasks/api/handlers"
	"videotasks/api/kafka"
	"videotasks/api/repository"
	"videotasks/api/service"
	"videotasks/storage"
)

func main() {
	var port string

	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Video task API",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			return run(cfg)
		},
	}
	rootCmd.Flags().StringVar(&port, "port", "", "listen port (overrides SERVICE_PORT)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("API Service starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("storage_driver", cfg.StorageDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to apply schema", zap.Error(err))
		return err
	}

	var statusCache service.StatusCache
	redisCache, err := database.ConnectCache(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("Redis unavailable, status cache disabled", zap.Error(err))
	} else {
		defer redisCache.Close()
		statusCache = cache.NewStatusCache(redisCache)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open storage", zap.Error(err))
		return err
	}
	defer closeStore()

	publisher, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		logger.Error("Failed to create Kafka producer", zap.Error(err))
		return err
	}
	defer publisher.Close()

	repo := repository.NewPostgresRepo(db)
	tokens := auth.NewTokenIssuer(cfg.SecretKey)
	taskCfg := service.TaskServiceConfig{
		Bucket:         cfg.VideosBucket,
		BackendURL:     cfg.BackendURL,
		MaxFileSize:    cfg.MaxFileSize,
		StorageTimeout: cfg.StorageTimeout,
		PublishTimeout: cfg.PublishTimeout,
	}

	authService := service.NewAuthService(repo, tokens, logger)
	taskService := service.NewTaskService(repo, statusCache, store, publisher, taskCfg, logger)
	videoService := service.NewVideoService(repo, store, taskCfg, logger)

	handler := handlers.Routes(handlers.Handlers{
		Auth:  handlers.NewAuthHandler(authService, logger),
		Task:  handlers.NewTaskHandler(taskService, cfg.MaxFileSize, logger),
		Video: handlers.NewVideoHandler(videoService, logger),
	}, tokens, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("Server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "gcs":
		store, err := storage.NewGCS(ctx, storage.GCSConfig{
			ProjectID:         cfg.GCPProjectID,
			CredentialsBase64: cfg.GCPCredentialsBase64,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "disk":
		store, err := storage.NewDisk(cfg.StorageDir, "")
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
