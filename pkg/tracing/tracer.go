// Package tracing records LLM, embedding and retrieval calls as runs in the
// langsmith run format and exports them asynchronously.
//
// A nil *Tracer is valid: Start returns a nil *Run and every Run method is a
// no-op on nil, so callers never branch on whether tracing is enabled.
package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Config configures a Tracer.
type Config struct {
	// Project is recorded as each run's session name.
	Project string

	Exporter Exporter

	// NumWorkers, QueueSize and BatchSize size the export queue.
	NumWorkers uint
	QueueSize  uint
	BatchSize  uint

	Logger *slog.Logger
}

// Tracer starts runs and exports them when they end.
type Tracer struct {
	project  string
	exporter Exporter
	queue    *queue
	logger   *slog.Logger
	clock    func() time.Time
}

type runKey struct{}

// New starts the export queue.
func New(cfg Config) (*Tracer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q, err := newQueue(cfg.Exporter, cfg.NumWorkers, cfg.QueueSize, cfg.BatchSize, logger)
	if err != nil {
		return nil, err
	}

	return &Tracer{
		project:  cfg.Project,
		exporter: cfg.Exporter,
		queue:    q,
		logger:   logger,
		clock:    time.Now,
	}, nil
}

// Project returns the project name runs are recorded under.
func (t *Tracer) Project() string {
	if t == nil {
		return ""
	}
	return t.project
}

// Start begins a run. The parent is the run carried by ctx, if any; the
// returned context carries the new run.
func (t *Tracer) Start(ctx context.Context, name, runType string, inputs map[string]any) (context.Context, *Run) {
	if t == nil {
		return ctx, nil
	}

	id := uuid.NewString()
	start := t.now()
	run := &Run{
		ID:          id,
		TraceID:     id,
		Name:        name,
		RunType:     runType,
		StartTime:   start,
		SessionName: t.project,
		Inputs:      inputs,
		Tags:        []string{},
		tracer:      t,
	}

	segment := dottedOrder(start, id)
	if parent := FromContext(ctx); parent != nil {
		run.TraceID = parent.TraceID
		run.ParentRunID = parent.ID
		run.DottedOrder = parent.DottedOrder + "." + segment
	} else {
		run.DottedOrder = segment
	}

	return context.WithValue(ctx, runKey{}, run), run
}

// Close exports every ended run and closes the exporter. Runs ended after
// Close are dropped.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.queue.close()
	return t.exporter.Close()
}

func (t *Tracer) now() time.Time {
	if t == nil || t.clock == nil {
		return time.Now()
	}
	return t.clock()
}

func (t *Tracer) enqueue(run *Run) {
	if t == nil {
		return
	}
	t.queue.enqueue(run)
}

// FromContext returns the run carried by ctx, or nil.
func FromContext(ctx context.Context) *Run {
	run, _ := ctx.Value(runKey{}).(*Run)
	return run
}

// Op runs fn inside a run named name and ends the run with fn's error.
// fn may record outputs on the run it is given.
func Op(ctx context.Context, t *Tracer, name, runType string, inputs map[string]any, fn func(ctx context.Context, run *Run) error) error {
	ctx, run := t.Start(ctx, name, runType, inputs)
	err := fn(ctx, run)
	run.End(nil, err)
	return err
}
