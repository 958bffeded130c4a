// Package langsmith uploads runs to the LangSmith multipart ingestion
// endpoint as zstd-compressed batches.
package langsmith

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/researcher/pkg/tracing"
)

const (
	DefaultEndpoint = "https://api.smith.langchain.com"

	defaultMaxAttempts    = 5
	defaultBackoffInitial = 500 * time.Millisecond
	defaultBackoffMax     = 10 * time.Second
	defaultInFlight       = 2
	defaultCloseTimeout   = 30 * time.Second
)

// Config configures the LangSmith exporter.
type Config struct {
	Endpoint       string
	APIKey         string
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	InFlight       int
}

// Exporter batches runs into compressed multipart uploads.
type Exporter struct {
	mu       sync.Mutex
	comp     *compressor
	uploader *uploader
	logger   *slog.Logger
}

// NewExporter validates cfg and fills defaults.
func NewExporter(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("langsmith exporter requires an API key")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = defaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.InFlight <= 0 {
		cfg.InFlight = defaultInFlight
	}

	return &Exporter{
		comp:     newCompressor(),
		uploader: newUploader(cfg, logger),
		logger:   logger,
	}, nil
}

// Export compresses runs into one batch and starts its upload. Upload
// failures are logged by the uploader.
func (e *Exporter) Export(ctx context.Context, runs []*tracing.Run) error {
	e.mu.Lock()
	for _, run := range runs {
		if run == nil {
			e.comp.discard()
			e.mu.Unlock()
			return tracing.ErrNilRun
		}
		if err := e.comp.addRun(run); err != nil {
			e.comp.discard()
			e.mu.Unlock()
			return fmt.Errorf("serializing run %s: %w", run.ID, err)
		}
	}
	b, err := e.comp.close()
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("compressing batch: %w", err)
	}
	if b.Runs == 0 {
		return nil
	}
	return e.uploader.sendAsync(ctx, b)
}

// Close waits for in-flight uploads.
func (e *Exporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()
	if err := e.uploader.wait(ctx); err != nil {
		return fmt.Errorf("waiting for uploads: %w", err)
	}
	return nil
}
