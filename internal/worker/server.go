package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/config"
	"github.com/reeltrip/reeltrip/internal/service"
)

// Server wraps the asynq worker server and its task mux.
type Server struct {
	logger *zap.Logger
	config *config.Config
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer creates a worker server processing itinerary runs.
func NewServer(logger *zap.Logger, cfg *config.Config, itineraryService *service.ItineraryService) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueName(cfg.Worker.QueueCritical, "critical"): 6,
				queueName(cfg.Worker.QueueDefault, "default"):   3,
				queueName(cfg.Worker.QueueLow, "low"):           1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	itineraryWorker := NewItineraryWorker(logger, itineraryService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeItineraryRun, itineraryWorker.ProcessTask)

	return &Server{
		logger: logger,
		config: cfg,
		server: server,
		mux:    mux,
	}
}

// Start runs the worker server until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
	)
	return s.server.Run(s.mux)
}

// Stop shuts the worker server down.
func (s *Server) Stop() {
	s.server.Shutdown()
}

// Enqueuer hands runs to the queue through an asynq client.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an enqueuer backed by its own asynq client.
func NewEnqueuer(cfg config.RedisConfig) *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// EnqueueRun enqueues one itinerary run on the default queue.
func (e *Enqueuer) EnqueueRun(ctx context.Context, runID uuid.UUID, sessionID, videoKey string, days int, prompt string) error {
	task, err := NewItineraryRunTask(&ItineraryRunPayload{
		RunID:     runID.String(),
		SessionID: sessionID,
		VideoKey:  videoKey,
		Days:      days,
		Prompt:    prompt,
	})
	if err != nil {
		return err
	}

	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
		return fmt.Errorf("failed to enqueue itinerary run: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

func queueName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

// asynqLogger adapts zap to the asynq logger interface.
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Sugar().Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Sugar().Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Sugar().Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Sugar().Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Sugar().Fatal(args...) }
