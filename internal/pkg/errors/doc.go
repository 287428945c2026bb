// Package errors defines the pipeline error taxonomy.
//
// Failures local to one estimator or one refinement iteration are absorbed
// by their stage and never reach callers directly. Failures of a whole
// stage are wrapped in a PipelineError tagged with the stage name, so a
// caller can tell "estimation failed" from "place lookup failed" without
// inspecting internals. Sentinel errors cover the pool-wide failure and
// empty-merge cases.
package errors
