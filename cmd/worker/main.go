package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/config"
	"github.com/reeltrip/reeltrip/internal/frames"
	"github.com/reeltrip/reeltrip/internal/llm/gemini"
	"github.com/reeltrip/reeltrip/internal/memory"
	"github.com/reeltrip/reeltrip/internal/pipeline"
	"github.com/reeltrip/reeltrip/internal/pkg/database"
	"github.com/reeltrip/reeltrip/internal/pkg/logger"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
	"github.com/reeltrip/reeltrip/internal/places"
	"github.com/reeltrip/reeltrip/internal/realtime"
	chrepo "github.com/reeltrip/reeltrip/internal/repository/clickhouse"
	pgrepo "github.com/reeltrip/reeltrip/internal/repository/postgres"
	"github.com/reeltrip/reeltrip/internal/service"
	"github.com/reeltrip/reeltrip/internal/storage"
	"github.com/reeltrip/reeltrip/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Log
	defer logger.Sync()

	log.Info("starting worker service")

	// Initialize dependencies
	itineraryService, cleanup, err := initWorkerDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	// Create worker server
	workerServer := worker.NewServer(log, cfg, itineraryService)

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initWorkerDependencies builds the itinerary service the worker hands
// queued runs to. The worker runs the same pipeline as the server but
// publishes progress to no SSE clients of its own.
func initWorkerDependencies(cfg *config.Config, log *zap.Logger) (*service.ItineraryService, func(), error) {
	ctx := context.Background()

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		pgDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}

	redisClient, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		pgDB.Close()
		_ = chDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	reelStore, err := storage.NewReelStore(ctx, cfg.MinIO, log)
	if err != nil {
		pgDB.Close()
		_ = chDB.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to initialize reel store: %w", err)
	}

	geminiClient := gemini.NewClient(cfg.Gemini, log)
	placesClient := places.NewClient(cfg.Places, log)

	hub := realtime.NewHub()
	timer := service.NewStageTimer(hub)
	sessions := memory.NewManager(
		cfg.Pipeline.MaxRawTurns,
		geminiClient,
		memory.NewRedisStore(redisClient, 7*24*time.Hour),
		log,
	)
	orchestrator := pipeline.NewOrchestrator(
		geminiClient,
		geminiClient,
		placesClient,
		geminiClient,
		sessions,
		metrics.NewRecorder(),
		timer,
		log,
		pipeline.Options{
			PoolSize:             cfg.Pipeline.PoolSize,
			ConvergenceThreshold: cfg.Pipeline.ConvergenceThreshold,
			MaxIterations:        cfg.Pipeline.MaxIterations,
			OverallDeadline:      cfg.Pipeline.OverallDeadline,
			DefaultDays:          cfg.Pipeline.DefaultDays,
		},
	)

	itineraryService := service.NewItineraryService(
		orchestrator,
		frames.NewFFmpegExtractor(log),
		reelStore,
		pgrepo.NewRunRepository(pgDB),
		chrepo.NewStageSampleRepository(chDB),
		timer,
		nil, // the worker never re-enqueues
		hub,
		cfg.Pipeline.MaxFrames,
		log,
	)

	cleanup := func() {
		pgDB.Close()
		_ = chDB.Close()
		redisClient.Close()
	}

	return itineraryService, cleanup, nil
}
