package importer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pool runs import jobs on a fixed set of workers behind a bounded
// queue. Each job is processed by exactly one worker, so chunks within
// a job stay strictly sequential.
type Pool struct {
	runner  *Runner
	queue   chan uuid.UUID
	workers int
	wg      sync.WaitGroup
	log     *logrus.Entry
}

func NewPool(runner *Runner, workers, queueSize int, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		runner:  runner,
		queue:   make(chan uuid.UUID, queueSize),
		workers: workers,
		log:     logger.WithField("component", "import_pool"),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for jobID := range p.queue {
				p.log.WithFields(logrus.Fields{"worker": worker, "job_id": jobID}).Info("Picked up import job")
				p.runner.Run(jobID)
			}
		}(i)
	}
	p.log.WithField("workers", p.workers).Info("Import worker pool started")
}

// Enqueue submits a job without blocking; a full queue is an error the
// caller reports back to the client
func (p *Pool) Enqueue(jobID uuid.UUID) error {
	select {
	case p.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("import queue is full")
	}
}

// Stop closes the queue and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	close(p.queue)
	p.wg.Wait()
	p.log.Info("Import worker pool stopped")
}
