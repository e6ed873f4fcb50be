package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/registry"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Pool fans a fixed number of workers out over one shared queue.
type Pool struct {
	workers []*Worker
	logger  *zap.Logger
}

// NewPool builds size workers sharing the given dependencies.
func NewPool(
	size int,
	queue scrape.Queue,
	jobStore scrape.JobStore,
	reg *registry.Registry,
	browser scrape.BrowserRuntime,
	sink scrape.ResultSink,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = New(queue, jobStore, reg, browser, sink, clock, cfg,
			logger.With(zap.Int("worker", i)))
	}
	return &Pool{workers: workers, logger: logger}
}

// Size reports the number of workers in the pool.
func (p *Pool) Size() int { return len(p.workers) }

// Run blocks until the context finishes and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool starting", zap.Int("workers", len(p.workers)))
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()
	p.logger.Info("worker pool stopped")
}
