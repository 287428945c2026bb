// Package handler contains the HTTP request handlers.
//
// Handlers are the entry point for HTTP requests, responsible for:
//   - Request parsing and validation
//   - Calling appropriate services
//   - Response formatting
//   - Error response mapping
//
// # Route Organization
//
// Routes are organized by resource under /api/v1: itineraries, runs,
// sessions and pipeline metrics. Health and readiness probes live at the
// root.
//
// # Error Handling
//
// Handlers convert domain errors to HTTP status codes using the
// apperrors package, so a failed pipeline stage surfaces as a 502 with
// the failing stage named in the body.
//
// # Thread Safety
//
// All handlers are safe for concurrent use.
package handler
