package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reeltrip/reeltrip/internal/domain"
)

// ProgressSink receives the stage events the timer forwards after
// recording them. The realtime hub satisfies this.
type ProgressSink interface {
	PublishStage(runID, stage, status string)
}

// StageTimer observes stage progress events and turns each
// started/finished pair into a duration sample for ClickHouse. It sits
// between the pipeline and the realtime hub.
type StageTimer struct {
	mu      sync.Mutex
	starts  map[string]time.Time
	samples map[uuid.UUID][]domain.StageSample
	next    ProgressSink
}

// NewStageTimer creates a stage timer forwarding to next; next may be
// nil.
func NewStageTimer(next ProgressSink) *StageTimer {
	return &StageTimer{
		starts:  make(map[string]time.Time),
		samples: make(map[uuid.UUID][]domain.StageSample),
		next:    next,
	}
}

// PublishStage records stage timing and forwards the event.
func (t *StageTimer) PublishStage(runID, stage, status string) {
	now := time.Now()
	key := runID + "|" + stage

	t.mu.Lock()
	if status == "started" {
		t.starts[key] = now
	} else if start, ok := t.starts[key]; ok {
		delete(t.starts, key)
		if id, err := uuid.Parse(runID); err == nil {
			duration := now.Sub(start)
			t.samples[id] = append(t.samples[id], domain.StageSample{
				RunID:      id,
				Stage:      stage,
				Duration:   duration,
				DurationMs: float64(duration.Milliseconds()),
				RecordedAt: now,
			})
		}
	}
	t.mu.Unlock()

	if t.next != nil {
		t.next.PublishStage(runID, stage, status)
	}
}

// Drain removes and returns a run's samples.
func (t *StageTimer) Drain(runID uuid.UUID) []domain.StageSample {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := t.samples[runID]
	delete(t.samples, runID)
	return samples
}
