package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/config"
	"github.com/reeltrip/reeltrip/internal/frames"
	"github.com/reeltrip/reeltrip/internal/handler"
	"github.com/reeltrip/reeltrip/internal/llm/gemini"
	"github.com/reeltrip/reeltrip/internal/memory"
	"github.com/reeltrip/reeltrip/internal/pipeline"
	"github.com/reeltrip/reeltrip/internal/pkg/database"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
	"github.com/reeltrip/reeltrip/internal/places"
	"github.com/reeltrip/reeltrip/internal/realtime"
	chrepo "github.com/reeltrip/reeltrip/internal/repository/clickhouse"
	pgrepo "github.com/reeltrip/reeltrip/internal/repository/postgres"
	"github.com/reeltrip/reeltrip/internal/service"
	"github.com/reeltrip/reeltrip/internal/storage"
	"github.com/reeltrip/reeltrip/internal/worker"
)

const sessionMemoryTTL = 7 * 24 * time.Hour

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Database connections
	Postgres   *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *redis.Client

	// Repositories
	RunRepo    *pgrepo.RunRepository
	SampleRepo *chrepo.StageSampleRepository

	// Pipeline
	Recorder     *metrics.Recorder
	Hub          *realtime.Hub
	StageTimer   *service.StageTimer
	Sessions     *memory.Manager
	Orchestrator *pipeline.Orchestrator

	// Services
	ItineraryService *service.ItineraryService

	// Handlers
	HealthHandler      *handler.HealthHandler
	ReelsHandler       *handler.ReelsHandler
	ItinerariesHandler *handler.ItinerariesHandler
	RunsHandler        *handler.RunsHandler
	SessionsHandler    *handler.SessionsHandler
	MetricsHandler     *handler.MetricsHandler
	EventsHandler      *handler.EventsHandler

	// Asynq enqueuer
	Enqueuer *worker.Enqueuer
}

// initDependencies initializes all dependencies
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	ctx := context.Background()

	// Initialize PostgreSQL using database wrapper
	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	deps.Postgres = pgDB

	// Initialize ClickHouse using database wrapper
	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	deps.ClickHouse = chDB

	// Initialize Redis
	redisClient, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	deps.Redis = redisClient

	// Initialize the reel object store
	reelStore, err := storage.NewReelStore(ctx, cfg.MinIO, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reel store: %w", err)
	}

	// Initialize repositories
	deps.RunRepo = pgrepo.NewRunRepository(pgDB)
	deps.SampleRepo = chrepo.NewStageSampleRepository(chDB)

	// Initialize external clients
	geminiClient := gemini.NewClient(cfg.Gemini, logger)
	placesClient := places.NewClient(cfg.Places, logger)

	// Initialize pipeline
	deps.Recorder = metrics.NewRecorder()
	deps.Hub = realtime.NewHub()
	deps.StageTimer = service.NewStageTimer(deps.Hub)
	deps.Sessions = memory.NewManager(
		cfg.Pipeline.MaxRawTurns,
		geminiClient,
		memory.NewRedisStore(redisClient, sessionMemoryTTL),
		logger,
	)
	deps.Orchestrator = pipeline.NewOrchestrator(
		geminiClient,
		geminiClient,
		placesClient,
		geminiClient,
		deps.Sessions,
		deps.Recorder,
		deps.StageTimer,
		logger,
		pipeline.Options{
			PoolSize:             cfg.Pipeline.PoolSize,
			ConvergenceThreshold: cfg.Pipeline.ConvergenceThreshold,
			MaxIterations:        cfg.Pipeline.MaxIterations,
			OverallDeadline:      cfg.Pipeline.OverallDeadline,
			DefaultDays:          cfg.Pipeline.DefaultDays,
		},
	)

	// Initialize the queue enqueuer
	deps.Enqueuer = worker.NewEnqueuer(cfg.Redis)

	// Initialize services
	deps.ItineraryService = service.NewItineraryService(
		deps.Orchestrator,
		frames.NewFFmpegExtractor(logger),
		reelStore,
		deps.RunRepo,
		deps.SampleRepo,
		deps.StageTimer,
		deps.Enqueuer,
		deps.Hub,
		cfg.Pipeline.MaxFrames,
		logger,
	)

	// Initialize handlers
	deps.HealthHandler = handler.NewHealthHandler(
		pgDB.Pool,
		chDB.Conn,
		redisClient,
		appVersion,
	)
	deps.ReelsHandler = handler.NewReelsHandler(reelStore, logger)
	deps.ItinerariesHandler = handler.NewItinerariesHandler(deps.ItineraryService, logger)
	deps.RunsHandler = handler.NewRunsHandler(deps.ItineraryService, logger)
	deps.SessionsHandler = handler.NewSessionsHandler(deps.Sessions, logger)
	deps.MetricsHandler = handler.NewMetricsHandler(deps.Recorder, deps.SampleRepo, logger)
	deps.EventsHandler = handler.NewEventsHandler(deps.Hub, logger)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() {
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.ClickHouse != nil {
		_ = d.ClickHouse.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.Enqueuer != nil {
		_ = d.Enqueuer.Close()
	}
}
