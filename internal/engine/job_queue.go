package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// JobQueue is a Dispatcher backed by a fixed pool of workers, so follow-up
// work across all sessions is bounded
type JobQueue struct {
	jobs       chan func()
	maxWorkers int
	log        *zap.Logger
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	processed atomic.Int64
	dropped   atomic.Int64
}

// JobQueueStats is a snapshot of queue counters
type JobQueueStats struct {
	Pending   int   `json:"pending"`
	Workers   int   `json:"workers"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
}

func NewJobQueue(maxWorkers, capacity int, log *zap.Logger) *JobQueue {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &JobQueue{
		jobs:       make(chan func(), capacity),
		maxWorkers: maxWorkers,
		log:        log,
	}
}

// Start launches the workers. They exit when ctx is done or after Stop.
func (q *JobQueue) Start(ctx context.Context) {
	for i := 0; i < q.maxWorkers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop closes the queue and waits for queued jobs to finish. Jobs dispatched
// after Stop are dropped.
func (q *JobQueue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *JobQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(job)
		}
	}
}

func (q *JobQueue) run(job func()) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job panicked", zap.Any("panic", r))
		}
		q.processed.Inc()
		q.log.Debug("job finished", zap.Duration("elapsed", time.Since(start)))
	}()
	job()
}

// Dispatch enqueues fn, dropping it when the queue is full or stopped
func (q *JobQueue) Dispatch(fn func()) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.dropped.Inc()
		q.log.Warn("job queue is stopped, dropping job")
		return
	}
	select {
	case q.jobs <- fn:
	default:
		q.dropped.Inc()
		q.log.Warn("job queue is full, dropping job", zap.Int("pending", len(q.jobs)))
	}
}

func (q *JobQueue) Stats() JobQueueStats {
	return JobQueueStats{
		Pending:   len(q.jobs),
		Workers:   q.maxWorkers,
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
	}
}
