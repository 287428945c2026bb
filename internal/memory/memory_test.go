package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
)

type fakeSummarizer struct {
	calls     int
	lastPrev  string
	lastTurns []domain.Interaction
	err       error
}

func (f *fakeSummarizer) Summarize(_ context.Context, prev string, turns []domain.Interaction) (string, error) {
	f.calls++
	f.lastPrev = prev
	f.lastTurns = turns
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("summary v%d over %d turns", f.calls, len(turns)), nil
}

type fakeStore struct {
	saved   map[string]domain.SessionMemory
	deleted []string
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]domain.SessionMemory)}
}

func (f *fakeStore) Load(_ context.Context, sessionID string) (domain.SessionMemory, error) {
	if f.loadErr != nil {
		return domain.SessionMemory{}, f.loadErr
	}
	return f.saved[sessionID], nil
}

func (f *fakeStore) Save(_ context.Context, mem domain.SessionMemory) error {
	f.saved[mem.SessionID] = mem
	return nil
}

func (f *fakeStore) Delete(_ context.Context, sessionID string) error {
	delete(f.saved, sessionID)
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func turn(role domain.InteractionRole, text string) domain.Interaction {
	return domain.Interaction{Role: role, Text: text}
}

func TestCompactNoOpAtOrBelowLimit(t *testing.T) {
	summarizer := &fakeSummarizer{}
	mgr := NewManager(3, summarizer, nil, zap.NewNop())
	s := mgr.Session("sess-1")

	s.Record(turn(domain.RoleUser, "first reel"))
	s.Record(turn(domain.RoleAssistant, "located Lisbon, Portugal"))
	s.Record(turn(domain.RoleUser, "second reel"))

	require.NoError(t, s.Compact(context.Background()))
	assert.Equal(t, 0, summarizer.calls)

	mem := s.Memory()
	assert.Len(t, mem.RawTurns, 3)
	assert.Empty(t, mem.CompactedSummary)
}

func TestCompactRegeneratesAndClears(t *testing.T) {
	summarizer := &fakeSummarizer{}
	mgr := NewManager(2, summarizer, nil, zap.NewNop())
	s := mgr.Session("sess-1")

	for i := 0; i < 3; i++ {
		s.Record(turn(domain.RoleUser, fmt.Sprintf("reel %d", i)))
	}

	require.NoError(t, s.Compact(context.Background()))
	assert.Equal(t, 1, summarizer.calls)
	assert.Len(t, summarizer.lastTurns, 3)

	mem := s.Memory()
	assert.Empty(t, mem.RawTurns)
	assert.Equal(t, "summary v1 over 3 turns", mem.CompactedSummary)
}

func TestCompactPassesPreviousSummary(t *testing.T) {
	summarizer := &fakeSummarizer{}
	mgr := NewManager(1, summarizer, nil, zap.NewNop())
	s := mgr.Session("sess-1")

	s.Record(turn(domain.RoleUser, "a"))
	s.Record(turn(domain.RoleAssistant, "b"))
	require.NoError(t, s.Compact(context.Background()))

	s.Record(turn(domain.RoleUser, "c"))
	s.Record(turn(domain.RoleAssistant, "d"))
	require.NoError(t, s.Compact(context.Background()))

	assert.Equal(t, 2, summarizer.calls)
	assert.Equal(t, "summary v1 over 2 turns", summarizer.lastPrev)
}

func TestCompactFailureKeepsTurns(t *testing.T) {
	summarizer := &fakeSummarizer{err: errors.New("model unavailable")}
	mgr := NewManager(1, summarizer, nil, zap.NewNop())
	s := mgr.Session("sess-1")

	s.Record(turn(domain.RoleUser, "a"))
	s.Record(turn(domain.RoleAssistant, "b"))

	err := s.Compact(context.Background())
	require.Error(t, err)

	mem := s.Memory()
	assert.Len(t, mem.RawTurns, 2)
	assert.Empty(t, mem.CompactedSummary)
}

func TestContextPrefix(t *testing.T) {
	summarizer := &fakeSummarizer{}
	mgr := NewManager(5, summarizer, nil, zap.NewNop())

	t.Run("empty session", func(t *testing.T) {
		assert.Empty(t, mgr.Session("empty").ContextPrefix())
	})

	t.Run("raw turns only", func(t *testing.T) {
		s := mgr.Session("raw")
		s.Record(turn(domain.RoleUser, "where is this beach"))
		s.Record(turn(domain.RoleAssistant, "located Nice, France"))

		prefix := s.ContextPrefix()
		assert.Contains(t, prefix, "USER: where is this beach")
		assert.Contains(t, prefix, "ASSISTANT: located Nice, France")
	})

	t.Run("summary precedes raw turns", func(t *testing.T) {
		s := mgr.Session("mixed")
		for i := 0; i < 6; i++ {
			s.Record(turn(domain.RoleUser, fmt.Sprintf("reel %d", i)))
		}
		require.NoError(t, s.Compact(context.Background()))
		s.Record(turn(domain.RoleUser, "newest reel"))

		prefix := s.ContextPrefix()
		assert.True(t, strings.HasPrefix(prefix, "summary v1"))
		assert.Contains(t, prefix, "USER: newest reel")
	})
}

func TestManagerSessionsIndependent(t *testing.T) {
	mgr := NewManager(5, &fakeSummarizer{}, nil, zap.NewNop())

	a := mgr.Session("a")
	b := mgr.Session("b")
	a.Record(turn(domain.RoleUser, "only in a"))

	assert.Empty(t, b.ContextPrefix())
	assert.Same(t, a, mgr.Session("a"))
}

func TestManagerLoadsAndPersistsThroughStore(t *testing.T) {
	store := newFakeStore()
	store.saved["sess-1"] = domain.SessionMemory{
		SessionID:        "sess-1",
		CompactedSummary: "previously located Kyoto, Japan",
		RawTurns:         []domain.Interaction{turn(domain.RoleUser, "pending turn")},
	}

	mgr := NewManager(5, &fakeSummarizer{}, store, zap.NewNop())
	s := mgr.Session("sess-1")

	prefix := s.ContextPrefix()
	assert.Contains(t, prefix, "previously located Kyoto, Japan")
	assert.Contains(t, prefix, "USER: pending turn")

	s.Record(turn(domain.RoleAssistant, "located Osaka, Japan"))
	require.NoError(t, mgr.Persist(context.Background(), s))
	assert.Len(t, store.saved["sess-1"].RawTurns, 2)
}

func TestManagerLoadFailureStartsFresh(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("connection refused")

	mgr := NewManager(5, &fakeSummarizer{}, store, zap.NewNop())
	s := mgr.Session("sess-1")
	assert.Empty(t, s.ContextPrefix())
}

func TestManagerClear(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(5, &fakeSummarizer{}, store, zap.NewNop())

	s := mgr.Session("sess-1")
	s.Record(turn(domain.RoleUser, "hello"))
	require.NoError(t, mgr.Persist(context.Background(), s))

	require.NoError(t, mgr.Clear(context.Background(), "sess-1"))
	assert.Contains(t, store.deleted, "sess-1")
	assert.Empty(t, mgr.Session("sess-1").ContextPrefix())
}
