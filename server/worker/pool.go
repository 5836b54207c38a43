// Package worker provides an asynchronous worker pool that publishes
// completed stream sessions to the configured eventstream.Publisher.
//
// The pool decouples event publishing from the server's streaming hot path so
// a slow or unavailable event backend never stalls a client stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/llmux/pkg/eventstream"
	"github.com/papercomputeco/llmux/pkg/logger"
	"github.com/papercomputeco/llmux/pkg/stream"
)

var (
	defaultNumWorkers     uint = 3
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Summary stream.Summary
	Source  eventstream.EventSource
	Request eventstream.RequestMeta
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives one event per completed session.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish call (defaults to 10s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes session events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
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

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session_id", job.Summary.ID,
			"provider", job.Summary.Provider,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"session_id", job.Summary.ID,
			"provider", job.Summary.Provider,
		)
		return false
	}
}

// Close signals workers to stop, waits for in-flight jobs to drain, then
// closes the publisher. Call this during graceful shutdown after the HTTP
// servers have stopped.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		err = p.config.Publisher.Close()
	})
	return err
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("event worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	event := eventstream.NewSessionCompletedEvent(job.Summary, job.Source, job.Request)
	if err := p.config.Publisher.PublishSession(ctx, event); err != nil {
		p.logger.Error("session event publish failed",
			"session_id", job.Summary.ID,
			"provider", job.Summary.Provider,
			"error", err,
		)
		return
	}

	p.logger.Debug("session event published",
		"event_id", event.EventID,
		"session_id", job.Summary.ID,
		"state", job.Summary.State,
	)
}
