package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/frames"
	"github.com/reeltrip/reeltrip/internal/pipeline"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
)

// RunStore is the run history persistence the service needs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	MarkRunning(ctx context.Context, id uuid.UUID) error
	SaveResult(ctx context.Context, id uuid.UUID, result *domain.ItineraryResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, stage, message string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListBySession(ctx context.Context, sessionID string, limit, offset int) (*domain.RunList, error)
}

// StageSampleStore persists per-run stage timings.
type StageSampleStore interface {
	CreateBatch(ctx context.Context, samples []domain.StageSample) error
}

// ReelFetcher fetches a reel video to a local file.
type ReelFetcher interface {
	Fetch(ctx context.Context, objectKey string) (string, func(), error)
}

// RunEnqueuer hands a run to the background queue.
type RunEnqueuer interface {
	EnqueueRun(ctx context.Context, runID uuid.UUID, sessionID, videoKey string, days int, prompt string) error
}

// RunFinishedPublisher announces terminal run states to stream clients.
type RunFinishedPublisher interface {
	PublishRunFinished(runID, status string)
}

// PlanInput is one itinerary request, synchronous or queued.
type PlanInput struct {
	SessionID string
	VideoKey  string
	Days      int
	Prompt    string
}

// ItineraryService runs the reel-to-itinerary pipeline end to end: fetch
// the reel, extract frames, orchestrate the pipeline and persist the
// outcome.
type ItineraryService struct {
	orchestrator *pipeline.Orchestrator
	extractor    frames.Extractor
	reels        ReelFetcher
	runs         RunStore
	samples      StageSampleStore
	timer        *StageTimer
	queue        RunEnqueuer
	finished     RunFinishedPublisher
	maxFrames    int
	logger       *zap.Logger
}

// NewItineraryService wires the itinerary service. samples, queue and
// finished may be nil; the corresponding features degrade to no-ops.
func NewItineraryService(
	orchestrator *pipeline.Orchestrator,
	extractor frames.Extractor,
	reels ReelFetcher,
	runs RunStore,
	samples StageSampleStore,
	timer *StageTimer,
	queue RunEnqueuer,
	finished RunFinishedPublisher,
	maxFrames int,
	logger *zap.Logger,
) *ItineraryService {
	if maxFrames < 1 {
		maxFrames = 8
	}
	return &ItineraryService{
		orchestrator: orchestrator,
		extractor:    extractor,
		reels:        reels,
		runs:         runs,
		samples:      samples,
		timer:        timer,
		queue:        queue,
		finished:     finished,
		maxFrames:    maxFrames,
		logger:       logger,
	}
}

// Plan executes a run synchronously and returns its result.
func (s *ItineraryService) Plan(ctx context.Context, input PlanInput) (*domain.ItineraryResult, error) {
	runID := uuid.New()
	run := &domain.Run{
		ID:        runID,
		SessionID: input.SessionID,
		VideoKey:  input.VideoKey,
		Days:      input.Days,
		Status:    domain.RunStatusRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	return s.execute(ctx, runID, input)
}

// Queue persists a queued run record and enqueues it for the worker.
func (s *ItineraryService) Queue(ctx context.Context, input PlanInput) (uuid.UUID, error) {
	runID := uuid.New()
	run := &domain.Run{
		ID:        runID,
		SessionID: input.SessionID,
		VideoKey:  input.VideoKey,
		Days:      input.Days,
		Status:    domain.RunStatusQueued,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return uuid.Nil, err
	}

	if err := s.queue.EnqueueRun(ctx, runID, input.SessionID, input.VideoKey, input.Days, input.Prompt); err != nil {
		if markErr := s.runs.MarkFailed(ctx, runID, "enqueue", err.Error()); markErr != nil {
			s.logger.Error("failed to mark run failed after enqueue error",
				zap.String("run_id", runID.String()), zap.Error(markErr))
		}
		return uuid.Nil, err
	}

	return runID, nil
}

// ExecuteQueuedRun runs an already persisted run. Called by the worker.
func (s *ItineraryService) ExecuteQueuedRun(ctx context.Context, runID uuid.UUID, input PlanInput) error {
	if err := s.runs.MarkRunning(ctx, runID); err != nil {
		return err
	}
	_, err := s.execute(ctx, runID, input)
	return err
}

// GetRun returns one persisted run.
func (s *ItineraryService) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return s.runs.GetByID(ctx, id)
}

// ListRuns returns a page of a session's runs.
func (s *ItineraryService) ListRuns(ctx context.Context, sessionID string, limit, offset int) (*domain.RunList, error) {
	return s.runs.ListBySession(ctx, sessionID, limit, offset)
}

func (s *ItineraryService) execute(ctx context.Context, runID uuid.UUID, input PlanInput) (*domain.ItineraryResult, error) {
	result, err := s.run(ctx, runID, input)
	if err != nil {
		stage := apperrors.FailedStage(err)
		if markErr := s.runs.MarkFailed(ctx, runID, stage, err.Error()); markErr != nil {
			s.logger.Error("failed to persist run failure",
				zap.String("run_id", runID.String()), zap.Error(markErr))
		}
		s.publishFinished(runID, string(domain.RunStatusFailed))
		s.persistSamples(runID)
		return nil, err
	}

	if saveErr := s.runs.SaveResult(ctx, runID, result); saveErr != nil {
		s.logger.Error("failed to persist run result",
			zap.String("run_id", runID.String()), zap.Error(saveErr))
	}
	s.publishFinished(runID, string(domain.RunStatusCompleted))
	s.persistSamples(runID)
	return result, nil
}

func (s *ItineraryService) run(ctx context.Context, runID uuid.UUID, input PlanInput) (*domain.ItineraryResult, error) {
	videoPath, cleanup, err := s.reels.Fetch(ctx, input.VideoKey)
	if err != nil {
		return nil, apperrors.AtStage(apperrors.StageExtraction, err)
	}
	defer cleanup()

	frameSet, err := s.extractor.Extract(ctx, videoPath, s.maxFrames)
	if err != nil {
		return nil, apperrors.AtStage(apperrors.StageExtraction, err)
	}

	return s.orchestrator.Run(ctx, pipeline.RunInput{
		RunID:     runID,
		SessionID: input.SessionID,
		Frames:    frameSet,
		Days:      input.Days,
		Prompt:    input.Prompt,
	})
}

// persistSamples drains the run's stage timings into ClickHouse on a
// short background deadline so a slow insert never delays the response.
func (s *ItineraryService) persistSamples(runID uuid.UUID) {
	if s.samples == nil || s.timer == nil {
		return
	}
	collected := s.timer.Drain(runID)
	if len(collected) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.samples.CreateBatch(ctx, collected); err != nil {
		s.logger.Warn("failed to persist stage samples",
			zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func (s *ItineraryService) publishFinished(runID uuid.UUID, status string) {
	if s.finished != nil {
		s.finished.PublishRunFinished(runID.String(), status)
	}
}
