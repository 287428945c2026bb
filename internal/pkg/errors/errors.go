package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Stage names used to tag pipeline failures.
const (
	StageExtraction  = "frame_extraction"
	StageEstimation  = "vision_pool"
	StageMerge       = "confidence_merge"
	StageRefinement  = "refinement"
	StagePlaceLookup = "place_lookup"
	StageComposition = "itinerary_composition"
)

var (
	// ErrAllEstimatorsFailed is returned by the estimator pool when every
	// estimator call failed. Fatal for the run.
	ErrAllEstimatorsFailed = errors.New("all estimators failed")

	// ErrNoEstimatesToMerge is returned by the merger on an empty input
	// set. The pool never produces one, so the orchestrator treats this as
	// a merge stage failure.
	ErrNoEstimatesToMerge = errors.New("no estimates to merge")
)

// PipelineError tags a stage failure with the name of the failing stage.
// Callers always receive either a complete result or exactly one of these.
type PipelineError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// AtStage wraps err in a PipelineError for the given stage. A nil err
// returns nil; an err already tagged keeps its original stage.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Err: err}
}

// FailedStage returns the stage name of a tagged error, or "" if the error
// carries no stage tag.
func FailedStage(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// EstimationError is a single estimator failure, identified by the failing
// source. Tolerated by the pool up to N-1 of N.
type EstimationError struct {
	SourceID string
	Err      error
}

// Error implements the error interface.
func (e *EstimationError) Error() string {
	return fmt.Sprintf("estimator %s: %v", e.SourceID, e.Err)
}

// Unwrap returns the underlying error.
func (e *EstimationError) Unwrap() error {
	return e.Err
}

// NotFoundError marks a missing resource (run, session).
type NotFoundError struct {
	Resource string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NotFound creates a not found error for the given resource.
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// IsNotFound reports whether err marks a missing resource.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusCode maps an error to the HTTP status handlers should return.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrAllEstimatorsFailed):
		return http.StatusBadGateway
	case FailedStage(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
