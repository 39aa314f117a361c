package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/config"
	"github.com/maneesh/fasttranscribe/internal/dashboard"
	"github.com/maneesh/fasttranscribe/internal/drivesync"
	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/handlers"
	"github.com/maneesh/fasttranscribe/internal/intake"
	"github.com/maneesh/fasttranscribe/internal/jobs"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/preview"
	"github.com/maneesh/fasttranscribe/internal/session"
	"github.com/maneesh/fasttranscribe/internal/storage"
	"github.com/maneesh/fasttranscribe/internal/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		// Logger is not configured yet
		logging.Init(logging.Config{Level: "info", Format: "json"})
		logging.Fatal("failed to load config", zap.Error(err))
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	defer logging.Sync()

	logging.Info("starting fasttranscribe service",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServicePort),
		zap.String("folder_store", cfg.FolderStore),
		zap.String("object_store", cfg.ObjectStore),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logging.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logging.Error("error shutting down tracer", zap.Error(err))
		}
	}()

	broadcaster := events.NewBroadcaster()

	// Folder store
	var folderStore folders.Store = folders.NewMemoryStore(folders.DemoRecords()...)
	if cfg.FolderStore == "tidb" {
		logging.Info("connecting to TiDB")
		tidbClient, err := storage.NewTiDBClient(cfg.GetDSN())
		if err != nil {
			logging.Fatal("failed to initialize TiDB client", zap.Error(err))
		}
		defer tidbClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tidbClient.EnsureSchema(ctx); err != nil {
			logging.Fatal("failed to prepare schema", zap.Error(err))
		}
		if err := tidbClient.Seed(ctx, folders.DemoRecords()); err != nil {
			logging.Fatal("failed to seed folders", zap.Error(err))
		}
		cancel()
		folderStore = tidbClient
		logging.Info("TiDB client initialized")
	}

	// Object store
	var (
		objectWriter  intake.ObjectWriter
		objectReader  preview.ObjectReader
		objectDeleter handlers.ObjectDeleter
	)
	if cfg.ObjectStore == "minio" {
		logging.Info("connecting to MinIO")
		minioClient, err := storage.NewMinioClient(
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
		)
		if err != nil {
			logging.Fatal("failed to initialize MinIO client", zap.Error(err))
		}
		objectWriter, objectReader, objectDeleter = minioClient, minioClient, minioClient
		logging.Info("MinIO client initialized")
	}

	// Sessions and preview cache
	var (
		sessionStore session.Store = session.NewMemoryStore()
		previewCache preview.Cache = preview.NewMemoryCache()
	)
	if cfg.CacheBackend == "redis" {
		logging.Info("connecting to Redis")
		redisClient, err := storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logging.Fatal("failed to initialize Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		sessionStore, previewCache = redisClient, redisClient
		logging.Info("Redis client initialized")
	}

	sessions, err := session.NewManager(sessionStore, cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		logging.Fatal("failed to initialize sessions", zap.Error(err))
	}
	views := dashboard.NewRegistry()
	sessions.OnTeardown(views.Drop)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.RunSweeper(sweepCtx, cfg.SweepEvery)

	folderService := folders.NewService(folderStore, broadcaster, folders.Config{
		Latency:     cfg.RoundTripLatency,
		ReloadDelay: cfg.TreeReloadDelay,
	})
	folderService.OnReload(views.Prune)
	if _, err := folderService.Load(context.Background()); err != nil {
		logging.Fatal("failed to load folder tree", zap.Error(err))
	}

	queue := jobs.NewQueue(jobs.NewSimulator(jobs.SimulatorConfig{
		StartDelayMax: cfg.JobStartDelayMax,
		TickInterval:  cfg.JobTickInterval,
		StepMax:       cfg.JobStepMax,
	}), broadcaster)
	queue.OnComplete(folderService.JobCompleted)

	syncManager := drivesync.NewManager(drivesync.Config{
		TotalFiles:   cfg.SyncTotalFiles,
		StartLatency: cfg.SyncStartLatency,
	}, drivesync.NewSimulator(drivesync.SimulatorConfig{
		TickInterval: cfg.SyncTickInterval,
		StepMax:      cfg.SyncStepMax,
	}), broadcaster)

	router := handlers.NewRouter(handlers.Deps{
		Sessions:    sessions,
		Queue:       queue,
		Intake:      intake.NewIntake(objectWriter),
		Folders:     folderService,
		Preview:     preview.NewService(previewCache, objectReader, cfg.PreviewLatency),
		Sync:        syncManager,
		Views:       views,
		Broadcaster: broadcaster,
		Objects:     objectDeleter,
	})

	// WriteTimeout stays off so event streams are not cut
	srv := &http.Server{
		Addr:        ":" + cfg.ServicePort,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	srv.RegisterOnShutdown(broadcaster.Close)

	// Start server in a goroutine
	go func() {
		logging.Info("server listening", zap.String("port", cfg.ServicePort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("server forced to shutdown", zap.Error(err))
	}

	queue.Close()
	syncManager.Close()
	folderService.Close()

	logging.Info("server exited")
}
