// Package server runs the replicator's HTTP API.
//
// It owns the listener lifecycle: serving until the context is cancelled
// and then shutting down gracefully within a bounded time.
package server
