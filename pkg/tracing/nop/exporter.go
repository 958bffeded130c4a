package nop

import (
	"context"

	"github.com/papercomputeco/researcher/pkg/tracing"
)

// Exporter is a no-op tracing exporter used for tests and disabled mode.
type Exporter struct{}

// NewExporter creates a new no-op exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export validates input and otherwise does nothing.
func (e *Exporter) Export(_ context.Context, runs []*tracing.Run) error {
	for _, run := range runs {
		if run == nil {
			return tracing.ErrNilRun
		}
	}
	return nil
}

// Close is a no-op.
func (e *Exporter) Close() error {
	return nil
}
