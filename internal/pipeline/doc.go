// Package pipeline implements the reel location pipeline: the parallel
// estimator pool, the deterministic confidence merger, the iterative
// refinement loop and the orchestrator that sequences them together with
// the external place lookup and itinerary composition collaborators.
//
// External inference capabilities are consumed through small interfaces
// declared here; implementations live elsewhere (internal/llm/gemini,
// internal/places). All per-run state is owned by a single orchestrator
// run; concurrent runs for different sessions share only the metrics
// recorder.
package pipeline
