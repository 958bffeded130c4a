package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

var (
	defaultNumWorkers   uint = 2
	defaultRunQueueSize uint = 256
	defaultBatchSize    uint = 64
)

// queue exports ended runs asynchronously so tracing never blocks the
// traced operation. A full queue drops the run.
type queue struct {
	exporter  Exporter
	runs      chan *Run
	batchSize int
	wg        sync.WaitGroup
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func newQueue(exporter Exporter, numWorkers, queueSize, batchSize uint, logger *slog.Logger) (*queue, error) {
	if numWorkers == 0 {
		numWorkers = defaultNumWorkers
	}
	if queueSize == 0 {
		queueSize = defaultRunQueueSize
	}
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}
	if numWorkers > uint(math.MaxInt) || batchSize > uint(math.MaxInt) {
		return nil, fmt.Errorf("trace queue sizing exceeds max int")
	}

	q := &queue{
		exporter:  exporter,
		runs:      make(chan *Run, queueSize),
		batchSize: int(batchSize),
		logger:    logger,
	}

	q.wg.Add(int(numWorkers))
	for i := range numWorkers {
		go q.worker(i)
	}
	return q, nil
}

// enqueue returns false when the run was dropped.
func (q *queue) enqueue(run *Run) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("run not queued, tracer closed", "run_id", run.ID, "name", run.Name)
		return false
	}

	select {
	case q.runs <- run:
		return true
	default:
		q.logger.Error("run not queued, queue full, run dropped",
			"run_id", run.ID,
			"name", run.Name,
		)
		return false
	}
}

// close stops accepting runs and waits for queued runs to be exported.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.runs)
	q.mu.Unlock()

	q.wg.Wait()
}

// worker exports whatever runs are immediately available, up to batchSize
// at a time.
func (q *queue) worker(id uint) {
	defer q.wg.Done()
	q.logger.Debug("trace worker started", "worker_id", id)

	for run := range q.runs {
		batch := []*Run{run}
	drain:
		for len(batch) < q.batchSize {
			select {
			case next, ok := <-q.runs:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		if err := q.exporter.Export(context.Background(), batch); err != nil {
			q.logger.Error("exporting runs failed", "runs", len(batch), "error", err)
		}
	}

	q.logger.Debug("trace worker stopped", "worker_id", id)
}
