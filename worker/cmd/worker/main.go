package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"videotasks/storage"
	"videotasks/worker/cache"
	"videotasks/worker/config"
	"videotasks/worker/converter"
	"videotasks/worker/kafka"
	"videotasks/worker/lease"
	"videotasks/worker/metrics"
	"videotasks/worker/pool"
	"videotasks/worker/repository"
	"videotasks/worker/service"
)

func main() {
	var workers int

	rootCmd := &cobra.Command{
		Use:   "worker",
		Short: "Video transform worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg := config.Load()
			if workers > 0 {
				cfg.WorkerCount = workers
			}
			return run(cfg)
		},
	}
	rootCmd.Flags().IntVar(&workers, "workers", 0, "concurrent transform workers (overrides WORKER_COUNT)")

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

	logger.Info("Worker Service starting",
		zap.Int("workers", cfg.WorkerCount),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("ack_mode", string(cfg.AckMode)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := metrics.Setup(cfg.MetricsInterval)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownMetrics(flushCtx)
	}()

	pipelineMetrics, err := metrics.NewPipeline(metrics.Meter())
	if err != nil {
		return err
	}

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Error("Failed to ping database", zap.Error(err))
		return err
	}

	var (
		locker      lease.Locker = lease.NewMemoryLocker()
		statusCache service.StatusCache
	)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, using in-process lease and no status cache", zap.Error(err))
		rdb.Close()
	} else {
		defer rdb.Close()
		locker = lease.NewRedisLocker(rdb, logger)
		statusCache = cache.NewStatusCache(rdb)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open storage", zap.Error(err))
		return err
	}
	defer closeStore()

	conv := converter.NewConverter(converter.Options{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		LogoPath:     cfg.LogoPath,
		ScratchDir:   cfg.ScratchDir,
		MaxDuration:  cfg.MaxClipDuration,
		CardDuration: cfg.CardDuration,
		ClipFadeOut:  500 * time.Millisecond,
		CardFadeIn:   time.Second,
		FPS:          cfg.OutputFPS,
	}, logger)

	processor := service.NewProcessor(
		repository.NewPostgresRepo(db),
		store,
		conv,
		locker,
		statusCache,
		pipelineMetrics,
		service.ProcessorConfig{
			Bucket:         cfg.VideosBucket,
			ScratchDir:     cfg.ScratchDir,
			LeaseTTL:       cfg.LeaseTTL,
			StorageTimeout: cfg.StorageTimeout,
		},
		logger,
	)

	workerPool := pool.NewWorkerPool(cfg.WorkerCount, cfg.WorkerCount)
	defer workerPool.Close()

	dispatcher := service.NewDispatcher(workerPool, processor, logger)

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, kafka.Options{
		AckMode:       cfg.AckMode,
		MaxDeliveries: cfg.MaxDeliveries,
		RetryBackoff:  cfg.RetryBackoff,
	}, logger)
	if err != nil {
		logger.Error("Failed to create Kafka consumer", zap.Error(err))
		return err
	}
	defer consumer.Close()

	logger.Info("Worker subscribed", zap.String("topic", cfg.KafkaTopic))
	if err := consumer.Consume(ctx, dispatcher.Handle); err != nil {
		logger.Error("Consumer stopped", zap.Error(err))
		return err
	}

	logger.Info("Worker stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "gcs":
		store, err := storage.NewGCS(ctx, storage.GCSConfig{
			ProjectID:         cfg.GCPProjectID,
			CredentialsBase64: cfg.GCPCredentialsBase64,
			ScratchDir:        cfg.ScratchDir,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "disk":
		store, err := storage.NewDisk(cfg.StorageDir, cfg.ScratchDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
