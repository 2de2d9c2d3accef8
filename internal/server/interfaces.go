package server

import "context"

// Server defines the lifecycle contract for transport servers managed by
// this package.
type Server interface {
	// Run serves requests until ctx is cancelled or the listener fails.
	// A graceful shutdown is not an error.
	Run(ctx context.Context) error

	// Shutdown stops the server and frees associated resources.
	Shutdown(ctx context.Context) error
}
