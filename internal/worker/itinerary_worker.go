// Package worker runs queued itinerary runs through the pipeline in the
// background.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/service"
)

// TypeItineraryRun is the task type for a queued itinerary run.
const TypeItineraryRun = "itinerary:run"

// ItineraryRunPayload is the payload for itinerary run tasks. The run
// record already exists in the queued state when the task is enqueued.
type ItineraryRunPayload struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	VideoKey  string `json:"video_key"`
	Days      int    `json:"days"`
	Prompt    string `json:"prompt,omitempty"`
}

// NewItineraryRunTask creates an itinerary run task.
func NewItineraryRunTask(payload *ItineraryRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal itinerary run payload: %w", err)
	}
	return asynq.NewTask(TypeItineraryRun, data, asynq.MaxRetry(2)), nil
}

// ItineraryWorker processes itinerary run tasks.
type ItineraryWorker struct {
	logger           *zap.Logger
	itineraryService *service.ItineraryService
}

// NewItineraryWorker creates an itinerary worker.
func NewItineraryWorker(logger *zap.Logger, itineraryService *service.ItineraryService) *ItineraryWorker {
	return &ItineraryWorker{
		logger:           logger,
		itineraryService: itineraryService,
	}
}

// ProcessTask executes one queued run. A malformed payload is not
// retried.
func (w *ItineraryWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload ItineraryRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal itinerary run payload: %w: %w", err, asynq.SkipRetry)
	}

	runID, err := uuid.Parse(payload.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w: %w", payload.RunID, err, asynq.SkipRetry)
	}

	w.logger.Info("processing itinerary run",
		zap.String("run_id", payload.RunID),
		zap.String("session_id", payload.SessionID),
		zap.String("video_key", payload.VideoKey),
	)

	if err := w.itineraryService.ExecuteQueuedRun(ctx, runID, service.PlanInput{
		SessionID: payload.SessionID,
		VideoKey:  payload.VideoKey,
		Days:      payload.Days,
		Prompt:    payload.Prompt,
	}); err != nil {
		return fmt.Errorf("itinerary run %s failed: %w", payload.RunID, err)
	}

	w.logger.Info("itinerary run completed", zap.String("run_id", payload.RunID))
	return nil
}
