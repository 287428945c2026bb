package domain

import "time"

// InteractionRole identifies who produced a session turn.
type InteractionRole string

const (
	// RoleUser marks a turn recorded from the caller's request.
	RoleUser InteractionRole = "user"
	// RoleAssistant marks a turn recorded from a pipeline result.
	RoleAssistant InteractionRole = "assistant"
)

// Interaction is one recorded session turn.
type Interaction struct {
	Role      InteractionRole `json:"role"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
}

// SessionMemory is the persistable view of one session's memory: the raw
// turns not yet compacted plus the regenerated summary of everything
// before them.
type SessionMemory struct {
	SessionID        string        `json:"sessionId"`
	RawTurns         []Interaction `json:"rawTurns"`
	CompactedSummary string        `json:"compactedSummary,omitempty"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}
