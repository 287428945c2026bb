// Package dto defines the HTTP request and response shapes.
package dto

import (
	"time"

	"github.com/reeltrip/reeltrip/internal/domain"
)

// PlanItineraryRequest starts a synchronous pipeline run over an already
// uploaded reel.
type PlanItineraryRequest struct {
	SessionID string `json:"sessionId" validate:"required,min=1,max=128"`
	VideoKey  string `json:"videoKey" validate:"required,min=1"`
	Days      int    `json:"days,omitempty" validate:"omitempty,gte=1,lte=14"`
	Prompt    string `json:"prompt,omitempty" validate:"omitempty,max=2000"`
}

// QueueItineraryRequest enqueues the same run for background processing.
type QueueItineraryRequest = PlanItineraryRequest

// ItineraryResponse is the result of a completed synchronous run.
type ItineraryResponse struct {
	RunID       string           `json:"runId"`
	Location    LocationResponse `json:"location"`
	Places      []domain.Place   `json:"places"`
	Itinerary   domain.Itinerary `json:"itinerary"`
	Unconverged bool             `json:"unconverged"`
	Iterations  int              `json:"iterations"`
}

// LocationResponse is the located city in API form.
type LocationResponse struct {
	City                string            `json:"city"`
	Country             string            `json:"country"`
	Region              string            `json:"region,omitempty"`
	AggregateConfidence float64           `json:"aggregateConfidence"`
	ContributingSources []string          `json:"contributingSources"`
	Landmarks           []domain.Landmark `json:"landmarks,omitempty"`
}

// QueuedRunResponse acknowledges an enqueued run.
type QueuedRunResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RunResponse is one persisted run record.
type RunResponse struct {
	ID                  string     `json:"id"`
	SessionID           string     `json:"sessionId"`
	Status              string     `json:"status"`
	Days                int        `json:"days"`
	ErrorStage          string     `json:"errorStage,omitempty"`
	ErrorMessage        string     `json:"errorMessage,omitempty"`
	City                string     `json:"city,omitempty"`
	Country             string     `json:"country,omitempty"`
	Region              string     `json:"region,omitempty"`
	AggregateConfidence float64    `json:"aggregateConfidence,omitempty"`
	Unconverged         bool       `json:"unconverged"`
	Iterations          int        `json:"iterations"`
	ItineraryMarkdown   string     `json:"itineraryMarkdown,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
}

// RunListResponse is a page of runs.
type RunListResponse struct {
	Runs       []RunResponse `json:"runs"`
	TotalCount int           `json:"totalCount"`
	HasMore    bool          `json:"hasMore"`
}

// SessionMemoryResponse exposes a session's memory for inspection.
type SessionMemoryResponse struct {
	SessionID        string               `json:"sessionId"`
	CompactedSummary string               `json:"compactedSummary,omitempty"`
	RawTurns         []domain.Interaction `json:"rawTurns"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// NewItineraryResponse maps a pipeline result to its API shape.
func NewItineraryResponse(result *domain.ItineraryResult) ItineraryResponse {
	return ItineraryResponse{
		RunID: result.RunID.String(),
		Location: LocationResponse{
			City:                result.Estimate.City,
			Country:             result.Estimate.Country,
			Region:              result.Estimate.Region,
			AggregateConfidence: result.Estimate.AggregateConfidence,
			ContributingSources: result.Estimate.ContributingSources,
			Landmarks:           result.Estimate.Landmarks,
		},
		Places:      result.Places,
		Itinerary:   result.Itinerary,
		Unconverged: result.Unconverged,
		Iterations:  result.Iterations,
	}
}

// NewRunResponse maps a persisted run to its API shape.
func NewRunResponse(run *domain.Run) RunResponse {
	return RunResponse{
		ID:                  run.ID.String(),
		SessionID:           run.SessionID,
		Status:              string(run.Status),
		Days:                run.Days,
		ErrorStage:          run.ErrorStage,
		ErrorMessage:        run.ErrorMessage,
		City:                run.City,
		Country:             run.Country,
		Region:              run.Region,
		AggregateConfidence: run.AggregateConfidence,
		Unconverged:         run.Unconverged,
		Iterations:          run.Iterations,
		ItineraryMarkdown:   run.ItineraryMarkdown,
		CreatedAt:           run.CreatedAt,
		CompletedAt:         run.CompletedAt,
	}
}

// NewRunListResponse maps a run page to its API shape.
func NewRunListResponse(list *domain.RunList) RunListResponse {
	runs := make([]RunResponse, 0, len(list.Runs))
	for i := range list.Runs {
		runs = append(runs, NewRunResponse(&list.Runs[i]))
	}
	return RunListResponse{
		Runs:       runs,
		TotalCount: list.TotalCount,
		HasMore:    list.HasMore,
	}
}
