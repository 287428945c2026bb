package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

// StageSampleReader reads persisted per-run stage timings.
type StageSampleReader interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StageSample, error)
	AverageDurations(ctx context.Context, since time.Time) (map[string]float64, error)
}

// MetricsHandler exposes the accumulated pipeline stage metrics.
type MetricsHandler struct {
	recorder *metrics.Recorder
	samples  StageSampleReader
	logger   *zap.Logger
}

// NewMetricsHandler creates a new metrics handler. samples may be nil
// when ClickHouse is not configured.
func NewMetricsHandler(recorder *metrics.Recorder, samples StageSampleReader, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		recorder: recorder,
		samples:  samples,
		logger:   logger,
	}
}

// GetPipelineMetrics handles GET /api/v1/metrics/pipeline. Values
// accumulate since process start or the last explicit reset.
func (h *MetricsHandler) GetPipelineMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"stages": h.recorder.Snapshot(),
	})
}

// ResetPipelineMetrics handles POST /api/v1/metrics/pipeline/reset
func (h *MetricsHandler) ResetPipelineMetrics(c *fiber.Ctx) error {
	h.recorder.Reset()
	h.logger.Info("pipeline metrics reset")
	return c.JSON(fiber.Map{
		"status": "reset",
	})
}

// GetStageAverages handles GET /api/v1/metrics/pipeline/averages. The
// window defaults to the last 24 hours.
func (h *MetricsHandler) GetStageAverages(c *fiber.Ctx) error {
	if h.samples == nil {
		return errorResponse(c, fiber.StatusNotFound, "Stage sample storage not configured")
	}

	hours := parseQueryInt(c, "hours", 24)
	if hours < 1 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	averages, err := h.samples.AverageDurations(c.Context(), since)
	if err != nil {
		h.logger.Error("failed to query stage averages", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to query stage averages")
	}

	return c.JSON(fiber.Map{
		"since":      since.UTC().Format(time.RFC3339),
		"averagesMs": averages,
	})
}

// GetRunSamples handles GET /api/v1/metrics/runs/:runId
func (h *MetricsHandler) GetRunSamples(c *fiber.Ctx) error {
	if h.samples == nil {
		return errorResponse(c, fiber.StatusNotFound, "Stage sample storage not configured")
	}

	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid run ID")
	}

	samples, err := h.samples.ListByRun(c.Context(), runID)
	if err != nil {
		h.logger.Error("failed to list run samples",
			zap.String("run_id", runID.String()), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list run samples")
	}

	return c.JSON(fiber.Map{
		"runId":   runID.String(),
		"samples": samples,
	})
}

// RegisterRoutes registers metrics routes
func (h *MetricsHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Get("/metrics/pipeline", h.GetPipelineMetrics)
	v1.Post("/metrics/pipeline/reset", h.ResetPipelineMetrics)
	v1.Get("/metrics/pipeline/averages", h.GetStageAverages)
	v1.Get("/metrics/runs/:runId", h.GetRunSamples)
}
