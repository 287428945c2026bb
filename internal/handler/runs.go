package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/dto"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
)

// RunReader is the service surface the run endpoints need.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListRuns(ctx context.Context, sessionID string, limit, offset int) (*domain.RunList, error)
}

// RunsHandler handles run history endpoints
type RunsHandler struct {
	runs   RunReader
	logger *zap.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(runs RunReader, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{
		runs:   runs,
		logger: logger,
	}
}

// GetRun handles GET /api/v1/runs/:runId
func (h *RunsHandler) GetRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid run ID")
	}

	run, err := h.runs.GetRun(c.Context(), runID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Run not found")
		}
		h.logger.Error("failed to get run", zap.String("run_id", runID.String()), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get run")
	}

	return c.JSON(dto.NewRunResponse(run))
}

// ListRuns handles GET /api/v1/runs?sessionId=
func (h *RunsHandler) ListRuns(c *fiber.Ctx) error {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "sessionId query parameter required")
	}

	p := ParsePagination(c, 100)

	list, err := h.runs.ListRuns(c.Context(), sessionID, p.Limit, p.Offset)
	if err != nil {
		h.logger.Error("failed to list runs", zap.String("session_id", sessionID), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list runs")
	}

	return c.JSON(dto.NewRunListResponse(list))
}

// RegisterRoutes registers run routes
func (h *RunsHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Get("/runs", h.ListRuns)
	v1.Get("/runs/:runId", h.GetRun)
}
