// Package worker provides an asynchronous worker pool that persists usage
// records to the provided storage.Driver and publishes them to the provided
// eventstream.Publisher.
//
// The pool decouples accounting from the gateway's HTTP hot path so a slow
// database or broker never delays a chat response.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/deepgate/pkg/eventstream"
	"github.com/papercomputeco/deepgate/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record storage.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for usage records.
	Driver storage.Driver

	// Publisher is the optional event stream publisher. Events are only
	// published for records that were stored.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds the storage and publish calls of a single job.
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes usage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("usage driver is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool. It never blocks.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"model", job.Record.Model,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"model", job.Record.Model,
			"request_id", job.Record.RequestID,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"model", job.Record.Model,
			"request_id", job.Record.RequestID,
		)
		return false
	}
}

// Close signals workers to stop and waits for queued jobs to drain.
// Call this during graceful shutdown after the gateway HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("usage worker stopped", "worker_id", id)
}

// processJob stores the usage record, then publishes it. Failures are logged
// and the job is dropped.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	rec := job.Record
	if err := p.config.Driver.Insert(ctx, &rec); err != nil {
		p.logger.Error("usage record storage failed",
			"model", rec.Model,
			"request_id", rec.RequestID,
			"error", err,
		)
		return
	}

	p.logger.Info("usage recorded",
		"model", rec.Model,
		"prompt_tokens", rec.PromptTokens,
		"completion_tokens", rec.CompletionTokens,
		"total_tokens", rec.TotalTokens,
		"outcome", rec.Outcome,
	)

	if p.config.Publisher == nil {
		return
	}

	if err := p.config.Publisher.PublishUsage(ctx, eventstream.NewUsageRecordedEvent(rec)); err != nil {
		p.logger.Warn("usage event publish failed",
			"model", rec.Model,
			"record_id", rec.ID,
			"error", err,
		)
	}
}
