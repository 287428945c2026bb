// Package memory maintains bounded, summarized per-session context for
// the pipeline. Each session accumulates raw interaction turns; once they
// exceed the configured limit a fresh summary is regenerated over
// everything (never incrementally patched) and the raw turns are cleared,
// bounding growth. Sessions are fully independent: one pipeline run per
// session at a time, no shared mutable state between sessions.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
)

// Summarizer condenses accumulated turns into one summary string. The
// previous summary is passed so continuity carries across compactions.
type Summarizer interface {
	Summarize(ctx context.Context, previousSummary string, turns []domain.Interaction) (string, error)
}

// Store persists session memory between process restarts. Implementations
// must tolerate missing sessions (return a zero SessionMemory, not an
// error).
type Store interface {
	Load(ctx context.Context, sessionID string) (domain.SessionMemory, error)
	Save(ctx context.Context, mem domain.SessionMemory) error
	Delete(ctx context.Context, sessionID string) error
}

// Session is one session's memory. The mutex guards against accidental
// concurrent use; the intended discipline is a single writer per session.
type Session struct {
	mu          sync.Mutex
	id          string
	rawTurns    []domain.Interaction
	summary     string
	maxRawTurns int
	summarizer  Summarizer
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Record appends one interaction to the raw turns.
func (s *Session) Record(turn domain.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.rawTurns = append(s.rawTurns, turn)
}

// Compact regenerates the summary and clears the raw turns when they
// exceed the limit; otherwise it is a no-op. Called once per completed
// pipeline run.
func (s *Session) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rawTurns) <= s.maxRawTurns {
		return nil
	}

	summary, err := s.summarizer.Summarize(ctx, s.summary, s.rawTurns)
	if err != nil {
		return err
	}
	s.summary = summary
	s.rawTurns = nil
	return nil
}

// ContextPrefix returns the compacted summary followed by any raw turns
// not yet folded in, ready for injection into estimation and refinement
// prompts. Empty when the session has no history.
func (s *Session) ContextPrefix() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if s.summary != "" {
		b.WriteString(s.summary)
	}
	for _, turn := range s.rawTurns {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.ToUpper(string(turn.Role)))
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}

// Memory returns the persistable view of the session.
func (s *Session) Memory() domain.SessionMemory {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]domain.Interaction, len(s.rawTurns))
	copy(turns, s.rawTurns)
	return domain.SessionMemory{
		SessionID:        s.id,
		RawTurns:         turns,
		CompactedSummary: s.summary,
		UpdatedAt:        time.Now(),
	}
}

// Manager hands out independent sessions keyed by session ID and persists
// them through the optional store.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxRawTurns int
	summarizer  Summarizer
	store       Store
	logger      *zap.Logger
}

// NewManager creates a session memory manager. store may be nil for
// purely in-process memory.
func NewManager(maxRawTurns int, summarizer Summarizer, store Store, logger *zap.Logger) *Manager {
	if maxRawTurns < 1 {
		maxRawTurns = 5
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		maxRawTurns: maxRawTurns,
		summarizer:  summarizer,
		store:       store,
		logger:      logger,
	}
}

// Session returns the memory for the given session ID, creating it on
// first use. Previously persisted state is loaded lazily.
func (m *Manager) Session(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return s
	}

	s := &Session{
		id:          sessionID,
		maxRawTurns: m.maxRawTurns,
		summarizer:  m.summarizer,
	}
	if m.store != nil {
		if mem, err := m.store.Load(context.Background(), sessionID); err != nil {
			m.logger.Warn("failed to load session memory, starting fresh",
				zap.String("session_id", sessionID), zap.Error(err))
		} else {
			s.rawTurns = mem.RawTurns
			s.summary = mem.CompactedSummary
		}
	}
	m.sessions[sessionID] = s
	return s
}

// Persist writes the session's current memory to the store, if any.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, s.Memory())
}

// Clear drops a session's memory from the manager and the store.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, sessionID)
}
