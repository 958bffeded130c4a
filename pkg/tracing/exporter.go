package tracing

import "context"

// Exporter ships finished runs to a tracing backend.
type Exporter interface {
	// Export sends a batch of ended runs. Implementations must not retain
	// or mutate the runs after returning unless they copy them.
	Export(ctx context.Context, runs []*Run) error

	// Close flushes pending work and releases resources.
	Close() error
}
