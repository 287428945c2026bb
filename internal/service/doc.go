// Package service holds the business logic between HTTP handlers and the
// pipeline, repositories and queue.
package service
