package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/dto"
	"github.com/reeltrip/reeltrip/internal/memory"
)

// SessionsHandler exposes session memory for inspection and reset.
type SessionsHandler struct {
	sessions *memory.Manager
	logger   *zap.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(sessions *memory.Manager, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// GetMemory handles GET /api/v1/sessions/:sessionId/memory
func (h *SessionsHandler) GetMemory(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Session ID required")
	}

	mem := h.sessions.Session(sessionID).Memory()

	return c.JSON(dto.SessionMemoryResponse{
		SessionID:        mem.SessionID,
		CompactedSummary: mem.CompactedSummary,
		RawTurns:         mem.RawTurns,
		UpdatedAt:        mem.UpdatedAt,
	})
}

// ClearMemory handles DELETE /api/v1/sessions/:sessionId/memory
func (h *SessionsHandler) ClearMemory(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Session ID required")
	}

	if err := h.sessions.Clear(c.Context(), sessionID); err != nil {
		h.logger.Error("failed to clear session memory",
			zap.String("session_id", sessionID), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to clear session memory")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers session routes
func (h *SessionsHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Get("/sessions/:sessionId/memory", h.GetMemory)
	v1.Delete("/sessions/:sessionId/memory", h.ClearMemory)
}
