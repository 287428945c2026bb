package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	events []string
}

func (s *sinkRecorder) PublishStage(runID, stage, status string) {
	s.events = append(s.events, runID+"/"+stage+"/"+status)
}

func TestStageTimerCollectsSamples(t *testing.T) {
	timer := NewStageTimer(nil)
	runID := uuid.New()

	timer.PublishStage(runID.String(), "vision_pool", "started")
	timer.PublishStage(runID.String(), "vision_pool", "completed")
	timer.PublishStage(runID.String(), "refinement", "started")
	timer.PublishStage(runID.String(), "refinement", "CONVERGED")

	samples := timer.Drain(runID)
	require.Len(t, samples, 2)
	assert.Equal(t, "vision_pool", samples[0].Stage)
	assert.Equal(t, "refinement", samples[1].Stage)
	for _, sample := range samples {
		assert.Equal(t, runID, sample.RunID)
		assert.False(t, sample.RecordedAt.IsZero())
	}

	// Drain removes the run's samples.
	assert.Empty(t, timer.Drain(runID))
}

func TestStageTimerIgnoresUnmatchedFinish(t *testing.T) {
	timer := NewStageTimer(nil)
	runID := uuid.New()

	timer.PublishStage(runID.String(), "vision_pool", "completed")
	assert.Empty(t, timer.Drain(runID))
}

func TestStageTimerForwardsEvents(t *testing.T) {
	sink := &sinkRecorder{}
	timer := NewStageTimer(sink)

	timer.PublishStage("run-1", "vision_pool", "started")
	timer.PublishStage("run-1", "vision_pool", "failed")

	assert.Equal(t, []string{
		"run-1/vision_pool/started",
		"run-1/vision_pool/failed",
	}, sink.events)
}

func TestStageTimerSeparatesRuns(t *testing.T) {
	timer := NewStageTimer(nil)
	runA := uuid.New()
	runB := uuid.New()

	timer.PublishStage(runA.String(), "vision_pool", "started")
	timer.PublishStage(runB.String(), "vision_pool", "started")
	timer.PublishStage(runA.String(), "vision_pool", "completed")

	assert.Len(t, timer.Drain(runA), 1)
	assert.Empty(t, timer.Drain(runB))
}
