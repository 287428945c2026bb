package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/memory"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

type stubPlaces struct {
	places []domain.Place
	err    error
	city   string
}

func (s *stubPlaces) LookupPlaces(_ context.Context, city, _ string) ([]domain.Place, error) {
	s.city = city
	return s.places, s.err
}

type stubComposer struct {
	itinerary domain.Itinerary
	err       error
	days      int
}

func (s *stubComposer) Compose(_ context.Context, _ domain.MergedEstimate, _ []domain.Place, _ string, days int) (domain.Itinerary, error) {
	s.days = days
	return s.itinerary, s.err
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, _ string, _ []domain.Interaction) (string, error) {
	return "summary", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishStage(_, stage, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, stage+":"+status)
}

type orchestratorFixture struct {
	estimator *scriptedEstimator
	refiner   *scriptedRefiner
	places    *stubPlaces
	composer  *stubComposer
	sessions  *memory.Manager
	recorder  *metrics.Recorder
	publisher *recordingPublisher
}

func newFixture() *orchestratorFixture {
	return &orchestratorFixture{
		estimator: &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
			ok("Lisbon", "Portugal", 0.9),
		}},
		refiner: &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
			candidate("Lisbon", "Portugal", 0.9),
		}},
		places:    &stubPlaces{places: []domain.Place{{Name: "Belem Tower", Rating: 4.6}}},
		composer:  &stubComposer{itinerary: domain.Itinerary{Days: 2, Markdown: "# Lisbon"}},
		sessions:  memory.NewManager(5, stubSummarizer{}, nil, zap.NewNop()),
		recorder:  metrics.NewRecorder(),
		publisher: &recordingPublisher{},
	}
}

func (f *orchestratorFixture) build(opts Options) *Orchestrator {
	return NewOrchestrator(
		f.estimator, f.refiner, f.places, f.composer,
		f.sessions, f.recorder, f.publisher, zap.NewNop(), opts,
	)
}

func defaultOpts() Options {
	return Options{PoolSize: 3, ConvergenceThreshold: 0.85, MaxIterations: 3, DefaultDays: 2}
}

func TestOrchestratorSuccessfulRun(t *testing.T) {
	f := newFixture()
	o := f.build(defaultOpts())

	result, err := o.Run(context.Background(), RunInput{
		SessionID: "sess-1",
		Frames:    []domain.Frame{{Index: 0, MIME: "image/jpeg"}},
		Days:      3,
		Prompt:    "plan my trip",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, result.RunID)
	assert.Equal(t, "Lisbon", result.Estimate.City)
	assert.False(t, result.Unconverged)
	assert.Len(t, result.Places, 1)
	assert.Equal(t, "# Lisbon", result.Itinerary.Markdown)
	assert.Equal(t, "Lisbon", f.places.city)
	assert.Equal(t, 3, f.composer.days)

	// Both the user prompt and the located result land in session memory.
	prefix := f.sessions.Session("sess-1").ContextPrefix()
	assert.Contains(t, prefix, "plan my trip")
	assert.Contains(t, prefix, "Lisbon, Portugal")

	snap := f.recorder.Snapshot()
	assert.Contains(t, snap, apperrors.StageEstimation)
	assert.Contains(t, snap, apperrors.StageMerge)
	assert.Contains(t, snap, apperrors.StageRefinement)
	assert.Contains(t, snap, apperrors.StagePlaceLookup)
	assert.Contains(t, snap, apperrors.StageComposition)
}

func TestOrchestratorPreservesRunID(t *testing.T) {
	f := newFixture()
	o := f.build(defaultOpts())

	id := uuid.New()
	result, err := o.Run(context.Background(), RunInput{RunID: id, SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, id, result.RunID)
}

func TestOrchestratorDefaultsDays(t *testing.T) {
	f := newFixture()
	o := f.build(defaultOpts())

	_, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.composer.days)
}

func TestOrchestratorAllEstimatorsFailed(t *testing.T) {
	f := newFixture()
	f.estimator.results = []func() (domain.LocationEstimate, error){
		fail("model overloaded"),
	}
	o := f.build(defaultOpts())

	_, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAllEstimatorsFailed)
	assert.Equal(t, apperrors.StageEstimation, apperrors.FailedStage(err))
	assert.Contains(t, f.publisher.events, apperrors.StageEstimation+":failed")
}

func TestOrchestratorPlaceLookupFailure(t *testing.T) {
	f := newFixture()
	f.places.err = errors.New("quota exceeded")
	o := f.build(defaultOpts())

	_, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.StagePlaceLookup, apperrors.FailedStage(err))
}

func TestOrchestratorCompositionFailure(t *testing.T) {
	f := newFixture()
	f.composer.err = errors.New("model refused")
	o := f.build(defaultOpts())

	_, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.StageComposition, apperrors.FailedStage(err))
}

func TestOrchestratorUnconvergedResult(t *testing.T) {
	f := newFixture()
	// Estimators disagree, so the merged aggregate starts low; refinement
	// candidates keep moving, so the loop runs out of iterations.
	f.estimator.results = []func() (domain.LocationEstimate, error){
		ok("Lisbon", "Portugal", 0.4),
		ok("Porto", "Portugal", 0.35),
		ok("Faro", "Portugal", 0.3),
	}
	f.refiner.results = []func() (domain.MergedEstimate, error){
		candidate("Porto", "Portugal", 0.5),
		candidate("Faro", "Portugal", 0.55),
		candidate("Braga", "Portugal", 0.6),
	}
	o := f.build(defaultOpts())

	result, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.NoError(t, err)

	// An exhausted loop still produces a usable, flagged result.
	assert.True(t, result.Unconverged)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, "Braga", result.Estimate.City)
}

func TestOrchestratorPublishesStageProgress(t *testing.T) {
	f := newFixture()
	o := f.build(defaultOpts())

	_, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.NoError(t, err)

	assert.Contains(t, f.publisher.events, apperrors.StageEstimation+":started")
	assert.Contains(t, f.publisher.events, apperrors.StageEstimation+":completed")
	assert.Contains(t, f.publisher.events, apperrors.StageRefinement+":CONVERGED")
	assert.Contains(t, f.publisher.events, apperrors.StageComposition+":completed")
}

func TestOrchestratorNilPublisher(t *testing.T) {
	f := newFixture()
	f.publisher = nil
	o := NewOrchestrator(
		f.estimator, f.refiner, f.places, f.composer,
		f.sessions, f.recorder, nil, zap.NewNop(), defaultOpts(),
	)

	_, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	assert.NoError(t, err)
}

func TestOrchestratorCustomMergeFunc(t *testing.T) {
	f := newFixture()
	o := f.build(defaultOpts())
	o.SetMergeFunc(func(estimates []domain.LocationEstimate) (domain.MergedEstimate, error) {
		return domain.MergedEstimate{City: "Override", Country: "Nowhere", AggregateConfidence: 1}, nil
	})

	result, err := o.Run(context.Background(), RunInput{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "Override", result.Estimate.City)
}
