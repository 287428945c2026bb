package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/memory"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

// Options tunes one orchestrator instance.
type Options struct {
	PoolSize             int
	ConvergenceThreshold float64
	MaxIterations        int
	OverallDeadline      time.Duration
	DefaultDays          int
}

// RunInput is everything one pipeline run needs. Frames are owned by the
// caller; the orchestrator only reads them.
type RunInput struct {
	RunID     uuid.UUID
	SessionID string
	Frames    []domain.Frame
	Days      int
	Prompt    string
}

// Orchestrator sequences estimator pool, confidence merge, refinement,
// place lookup and itinerary composition, threading the metrics recorder
// and session memory through every stage. Each run either returns a
// complete result (possibly flagged unconverged) or a single PipelineError
// naming the failing stage.
type Orchestrator struct {
	pool      *Pool
	merge     MergeFunc
	loop      *Loop
	places    PlaceProvider
	composer  Composer
	sessions  *memory.Manager
	recorder  *metrics.Recorder
	publisher ProgressPublisher
	logger    *zap.Logger
	opts      Options
}

// NewOrchestrator wires a pipeline orchestrator. The merge function
// defaults to Merge; publisher may be nil.
func NewOrchestrator(
	estimator Estimator,
	refiner Refiner,
	places PlaceProvider,
	composer Composer,
	sessions *memory.Manager,
	recorder *metrics.Recorder,
	publisher ProgressPublisher,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if opts.PoolSize < 1 {
		opts.PoolSize = 3
	}
	if opts.DefaultDays < 1 {
		opts.DefaultDays = 2
	}
	return &Orchestrator{
		pool:      NewPool(opts.PoolSize, estimator, recorder, logger),
		merge:     Merge,
		loop:      NewLoop(refiner, opts.ConvergenceThreshold, opts.MaxIterations, recorder, logger),
		places:    places,
		composer:  composer,
		sessions:  sessions,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// SetMergeFunc swaps the aggregation rule. The default sum-of-confidence
// grouping is kept unless operators need a different weighting.
func (o *Orchestrator) SetMergeFunc(fn MergeFunc) {
	if fn != nil {
		o.merge = fn
	}
}

// Run executes one full pipeline run. On failure the returned error is a
// PipelineError tagged with the failing stage; absorbed per-call failures
// only surface through the metrics recorder.
func (o *Orchestrator) Run(ctx context.Context, input RunInput) (*domain.ItineraryResult, error) {
	if o.opts.OverallDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.OverallDeadline)
		defer cancel()
	}
	if input.RunID == uuid.Nil {
		input.RunID = uuid.New()
	}
	days := input.Days
	if days < 1 {
		days = o.opts.DefaultDays
	}

	log := o.logger.With(
		zap.String("run_id", input.RunID.String()),
		zap.String("session_id", input.SessionID),
	)
	log.Info("starting pipeline run", zap.Int("frames", len(input.Frames)), zap.Int("days", days))

	session := o.sessions.Session(input.SessionID)
	memoryContext := session.ContextPrefix()

	// Estimator pool: the only concurrent region of the run.
	o.publishStage(input.RunID, apperrors.StageEstimation, "started")
	estimates, err := o.pool.Run(ctx, input.Frames, memoryContext)
	if err != nil {
		o.publishStage(input.RunID, apperrors.StageEstimation, "failed")
		return nil, o.fail(apperrors.StageEstimation, err)
	}
	o.publishStage(input.RunID, apperrors.StageEstimation, "completed")

	// Confidence merge: pure, deterministic aggregation.
	var merged domain.MergedEstimate
	err = o.recorder.Time(apperrors.StageMerge, func() error {
		var mergeErr error
		merged, mergeErr = o.merge(estimates)
		return mergeErr
	})
	if err != nil {
		return nil, o.fail(apperrors.StageMerge, err)
	}
	log.Info("estimates merged",
		zap.String("city", merged.City),
		zap.String("country", merged.Country),
		zap.Float64("aggregate_confidence", merged.AggregateConfidence),
	)

	// Refinement loop: degrades to EXHAUSTED instead of failing.
	o.publishStage(input.RunID, apperrors.StageRefinement, "started")
	state := o.loop.Run(ctx, merged, memoryContext)
	final := state.Current
	o.publishStage(input.RunID, apperrors.StageRefinement, string(state.Status))

	// Place lookup.
	o.publishStage(input.RunID, apperrors.StagePlaceLookup, "started")
	var places []domain.Place
	err = o.recorder.Time(apperrors.StagePlaceLookup, func() error {
		var lookupErr error
		places, lookupErr = o.places.LookupPlaces(ctx, final.City, final.Country)
		return lookupErr
	})
	if err != nil {
		o.publishStage(input.RunID, apperrors.StagePlaceLookup, "failed")
		return nil, o.fail(apperrors.StagePlaceLookup, err)
	}
	o.publishStage(input.RunID, apperrors.StagePlaceLookup, "completed")

	// Itinerary composition.
	o.publishStage(input.RunID, apperrors.StageComposition, "started")
	var itinerary domain.Itinerary
	err = o.recorder.Time(apperrors.StageComposition, func() error {
		var composeErr error
		itinerary, composeErr = o.composer.Compose(ctx, final, places, memoryContext, days)
		return composeErr
	})
	if err != nil {
		o.publishStage(input.RunID, apperrors.StageComposition, "failed")
		return nil, o.fail(apperrors.StageComposition, err)
	}
	o.publishStage(input.RunID, apperrors.StageComposition, "completed")

	result := &domain.ItineraryResult{
		RunID:       input.RunID,
		Estimate:    final,
		Places:      places,
		Itinerary:   itinerary,
		Unconverged: !state.Converged(),
		Iterations:  state.Iteration,
	}

	o.updateSessionMemory(ctx, session, input, result)

	outcome := "completed"
	if result.Unconverged {
		outcome = "unconverged"
	}
	metrics.RecordRunOutcome(outcome)
	log.Info("pipeline run finished",
		zap.String("outcome", outcome),
		zap.Int("iterations", state.Iteration),
		zap.Int("places", len(places)),
	)
	return result, nil
}

// updateSessionMemory records the turn pair and compacts once per run.
// Compaction failures are absorbed: memory is a best-effort context aid,
// never a reason to fail a finished run.
func (o *Orchestrator) updateSessionMemory(ctx context.Context, session *memory.Session, input RunInput, result *domain.ItineraryResult) {
	prompt := input.Prompt
	if prompt == "" {
		prompt = "locate reel and plan a " + result.Estimate.DisplayName() + " itinerary"
	}
	session.Record(domain.Interaction{
		Role: domain.RoleUser, Text: prompt, Timestamp: time.Now(),
	})
	session.Record(domain.Interaction{
		Role:      domain.RoleAssistant,
		Text:      "located " + result.Estimate.DisplayName(),
		Timestamp: time.Now(),
	})

	if err := session.Compact(ctx); err != nil {
		o.logger.Warn("session memory compaction failed", zap.Error(err))
		o.recorder.Increment("session_memory", "compaction_failure", 1)
	}
	if err := o.sessions.Persist(ctx, session); err != nil {
		o.logger.Warn("session memory persistence failed", zap.Error(err))
	}
}

func (o *Orchestrator) fail(stage string, err error) error {
	metrics.RecordRunOutcome("failed")
	o.recorder.Increment(stage, "stage_failure", 1)
	return apperrors.AtStage(stage, err)
}

func (o *Orchestrator) publishStage(runID uuid.UUID, stage, status string) {
	if o.publisher != nil {
		o.publisher.PublishStage(runID.String(), stage, status)
	}
}
