// Package domain contains the core data model for the reel location
// pipeline: vision estimates, merged estimates, refinement state, session
// memory, places and itinerary runs.
//
// Types here are plain data carriers shared by the pipeline, handlers,
// repositories and workers. They carry JSON tags for the API and ch tags
// where they are persisted to ClickHouse.
package domain
