// Package realtime fans pipeline stage progress out to connected SSE
// clients, keyed by run ID.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one progress notification for a run.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"runId"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is one connected client following a run.
type Subscriber struct {
	ID      string
	RunID   string
	Channel chan *Event
	Done    chan struct{}
}

// Hub tracks subscribers and routes events to the ones following the
// event's run.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a client for one run's events.
func (h *Hub) Subscribe(runID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:      uuid.New().String(),
		RunID:   runID,
		Channel: make(chan *Event, 64),
		Done:    make(chan struct{}),
	}
	h.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channels.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		close(sub.Done)
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// PublishStage notifies all subscribers of a run that a stage changed
// status. Never blocks; slow subscribers drop events.
func (h *Hub) PublishStage(runID, stage, status string) {
	h.publish(&Event{
		Type:      "stage.progress",
		RunID:     runID,
		Stage:     stage,
		Status:    status,
		Timestamp: time.Now(),
	})
}

// PublishRunFinished notifies subscribers that a run reached a terminal
// state.
func (h *Hub) PublishRunFinished(runID, status string) {
	h.publish(&Event{
		Type:      "run.finished",
		RunID:     runID,
		Status:    status,
		Timestamp: time.Now(),
	})
}

func (h *Hub) publish(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.RunID != event.RunID {
			continue
		}
		select {
		case sub.Channel <- event:
		default:
			// Subscriber buffer full, drop.
		}
	}
}

// SubscriberCount returns the number of clients following a run.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, sub := range h.subscribers {
		if sub.RunID == runID {
			count++
		}
	}
	return count
}

// FormatSSE renders an event as one SSE data frame.
func FormatSSE(event *Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("data: %s\n\n", data)), nil
}
