package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/dto"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/service"
)

// ItineraryPlanner is the service surface the itinerary endpoints need.
type ItineraryPlanner interface {
	Plan(ctx context.Context, input service.PlanInput) (*domain.ItineraryResult, error)
	Queue(ctx context.Context, input service.PlanInput) (uuid.UUID, error)
}

// ItinerariesHandler handles itinerary planning endpoints
type ItinerariesHandler struct {
	planner ItineraryPlanner
	logger  *zap.Logger
}

// NewItinerariesHandler creates a new itineraries handler
func NewItinerariesHandler(planner ItineraryPlanner, logger *zap.Logger) *ItinerariesHandler {
	return &ItinerariesHandler{
		planner: planner,
		logger:  logger,
	}
}

// PlanItinerary handles POST /api/v1/itineraries. The run executes
// synchronously; the response carries the full result.
func (h *ItinerariesHandler) PlanItinerary(c *fiber.Ctx) error {
	var req dto.PlanItineraryRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.planner.Plan(c.Context(), service.PlanInput{
		SessionID: req.SessionID,
		VideoKey:  req.VideoKey,
		Days:      req.Days,
		Prompt:    req.Prompt,
	})
	if err != nil {
		status := apperrors.StatusCode(err)
		h.logger.Error("itinerary run failed",
			zap.String("session_id", req.SessionID),
			zap.String("stage", apperrors.FailedStage(err)),
			zap.Error(err),
		)
		return c.Status(status).JSON(ErrorResponse{
			Error:   errorName(status),
			Message: "Itinerary run failed",
			Stage:   apperrors.FailedStage(err),
		})
	}

	return c.JSON(dto.NewItineraryResponse(result))
}

// QueueItinerary handles POST /api/v1/itineraries/queue. The run is
// persisted and handed to the background worker.
func (h *ItinerariesHandler) QueueItinerary(c *fiber.Ctx) error {
	var req dto.QueueItineraryRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	runID, err := h.planner.Queue(c.Context(), service.PlanInput{
		SessionID: req.SessionID,
		VideoKey:  req.VideoKey,
		Days:      req.Days,
		Prompt:    req.Prompt,
	})
	if err != nil {
		h.logger.Error("failed to queue itinerary run",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to queue itinerary run")
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.QueuedRunResponse{
		RunID:  runID.String(),
		Status: string(domain.RunStatusQueued),
	})
}

// RegisterRoutes registers itinerary routes
func (h *ItinerariesHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Post("/itineraries", h.PlanItinerary)
	v1.Post("/itineraries/queue", h.QueueItinerary)
}
