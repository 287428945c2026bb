package handler

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/realtime"
)

// EventsHandler handles Server-Sent Events endpoints
type EventsHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *realtime.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		logger: logger,
	}
}

// StreamRunEvents handles GET /api/v1/runs/:runId/events. Stage progress
// and the terminal run.finished event stream as SSE frames until the
// client disconnects.
func (h *EventsHandler) StreamRunEvents(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid run ID")
	}

	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sub := h.hub.Subscribe(runID.String())

	h.logger.Info("SSE client connected",
		zap.String("run_id", runID.String()),
		zap.String("subscriber_id", sub.ID),
	)

	ctx := c.Context()
	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		fmt.Fprintf(w, "event: connected\n")
		fmt.Fprintf(w, "data: {\"subscriberId\":\"%s\"}\n\n", sub.ID)
		w.Flush()

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-sub.Channel:
				if !ok {
					return
				}

				data, err := realtime.FormatSSE(event)
				if err != nil {
					h.logger.Error("failed to format SSE event", zap.Error(err))
					continue
				}

				fmt.Fprintf(w, "event: %s\n", event.Type)
				w.Write(data)
				w.Flush()

			case <-heartbeat.C:
				fmt.Fprintf(w, ": heartbeat\n\n")
				w.Flush()

			case <-sub.Done:
				return

			case <-ctx.Done():
				h.hub.Unsubscribe(sub.ID)
				return
			}
		}
	}))

	return nil
}

// GetSubscribers handles GET /api/v1/runs/:runId/subscribers
func (h *EventsHandler) GetSubscribers(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid run ID")
	}

	return c.JSON(fiber.Map{
		"count": h.hub.SubscriberCount(runID.String()),
	})
}

// RegisterRoutes registers event routes
func (h *EventsHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Get("/runs/:runId/events", h.StreamRunEvents)
	v1.Get("/runs/:runId/subscribers", h.GetSubscribers)
}
