package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/memory"
)

func newSessionsApp(manager *memory.Manager) *fiber.App {
	app := fiber.New()
	NewSessionsHandler(manager, zap.NewNop()).RegisterRoutes(app)
	return app
}

func TestGetSessionMemory(t *testing.T) {
	manager := memory.NewManager(5, nil, nil, zap.NewNop())
	manager.Session("sess-1").Record(domain.Interaction{
		Role: domain.RoleUser, Text: "prefer street food",
	})
	app := newSessionsApp(manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1/memory", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "sess-1", result["sessionId"])
	assert.Len(t, result["rawTurns"], 1)
}

func TestGetSessionMemory_EmptySession(t *testing.T) {
	app := newSessionsApp(memory.NewManager(5, nil, nil, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/fresh/memory", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "fresh", result["sessionId"])
	assert.Empty(t, result["rawTurns"])
}

func TestClearSessionMemory(t *testing.T) {
	manager := memory.NewManager(5, nil, nil, zap.NewNop())
	manager.Session("sess-1").Record(domain.Interaction{
		Role: domain.RoleUser, Text: "prefer street food",
	})
	app := newSessionsApp(manager)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/sess-1/memory", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Session comes back empty after the clear.
	assert.Empty(t, manager.Session("sess-1").Memory().RawTurns)
}
