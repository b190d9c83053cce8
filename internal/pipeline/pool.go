package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/metrics"
)

// Pool is a fixed-size worker pool draining queued conversion jobs.
type Pool struct {
	runner      *Runner
	queue       chan *Job
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	workerCount int
}

// NewPool creates a worker pool over the runner with a bounded queue.
func NewPool(runner *Runner, workerCount, queueSize int) *Pool {
	if workerCount <= 0 {
		workerCount = 3
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		runner:      runner,
		queue:       make(chan *Job, queueSize),
		ctx:         ctx,
		cancel:      cancel,
		workerCount: workerCount,
	}
}

// Enqueue submits a job for conversion. Returns an error when the queue is
// full rather than blocking the upload handler.
func (p *Pool) Enqueue(job *Job) error {
	select {
	case p.queue <- job:
		return nil
	default:
		return fmt.Errorf("conversion queue is full")
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	logger.Logger.Info().Int("worker_count", p.workerCount).Msg("Starting conversion pool")
	metrics.ActiveWorkers.Set(float64(p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels in-flight work and waits for all workers to exit.
func (p *Pool) Stop() {
	logger.Logger.Info().Msg("Stopping conversion pool")
	p.cancel()
	p.wg.Wait()
	metrics.ActiveWorkers.Set(0)
	logger.Logger.Info().Msg("Conversion pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Logger.Info().Int("worker_id", id).Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			logger.Logger.Info().Int("worker_id", id).Msg("Worker shutting down")
			return
		case job := <-p.queue:
			logger.WithJobID(job.ID).Info().
				Int("worker_id", id).
				Str("source", job.SourceName).
				Msg("Processing job")
			p.runner.Run(p.ctx, job)
		}
	}
}
