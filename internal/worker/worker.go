// Package worker implements the job execution loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/metrics"
	"github.com/scrapekit/browserjobs/internal/registry"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Config controls Worker behavior.
type Config struct {
	// JobTimeout bounds one job's execution. Zero disables the bound.
	JobTimeout time.Duration
}

// Worker consumes queue items and executes the resolved task. A worker
// owns one job at a time; whatever the task does, the worker publishes
// exactly one terminal transition for it.
type Worker struct {
	queue    scrape.Queue
	jobStore scrape.JobStore
	registry *registry.Registry
	browser  scrape.BrowserRuntime
	sink     scrape.ResultSink
	clock    scrape.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	queue scrape.Queue,
	jobStore scrape.JobStore,
	reg *registry.Registry,
	browser scrape.BrowserRuntime,
	sink scrape.ResultSink,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		jobStore: jobStore,
		registry: reg,
		browser:  browser,
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID), zap.String("task", item.TaskName))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item scrape.QueueItem) {
	if err := w.jobStore.MarkRunning(ctx, item.JobID, w.clock.Now()); err != nil {
		// Likely forced to error by the watchdog while still queued.
		w.logger.Warn("mark running failed, skipping job",
			zap.String("job_id", item.JobID),
			zap.Error(err),
		)
		return
	}

	metrics.WorkerStarted()
	defer metrics.WorkerDone()

	jobCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	start := w.clock.Now()
	result, err := w.execute(jobCtx, item)
	if err != nil {
		jobErr := scrape.Classify(err)
		w.logger.Error("job failed",
			zap.String("job_id", item.JobID),
			zap.String("task", item.TaskName),
			zap.String("kind", string(jobErr.Kind)),
			zap.Error(err),
		)
		if failErr := w.jobStore.Fail(ctx, item.JobID, jobErr, w.clock.Now()); failErr != nil {
			w.logger.Error("publish job error failed", zap.String("job_id", item.JobID), zap.Error(failErr))
		}
		metrics.JobCompleted(item.TaskName, string(scrape.JobStatusError))
		return
	}

	w.persistResult(ctx, item, result)

	if err := w.jobStore.Complete(ctx, item.JobID, result, w.clock.Now()); err != nil {
		w.logger.Error("publish job result failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	metrics.JobCompleted(item.TaskName, string(scrape.JobStatusFinished))
	w.logger.Info("job finished",
		zap.String("job_id", item.JobID),
		zap.String("task", item.TaskName),
		zap.Duration("duration", w.clock.Now().Sub(start)),
	)
}

// execute resolves and runs the task. Panics inside a task are converted
// to errors here; nothing a task does may take down the worker loop.
func (w *Worker) execute(ctx context.Context, item scrape.QueueItem) (result map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &scrape.JobError{
				Kind:    scrape.ErrorKindInternal,
				Message: fmt.Sprintf("task panic: %v", rec),
			}
		}
	}()

	task, err := w.registry.Resolve(item.TaskName)
	if err != nil {
		// Submission validates the name, so this indicates a registry
		// change between submit and execution.
		return nil, err
	}

	result, err = task.Run(ctx, scrape.RunInput{
		JobID:   item.JobID,
		Params:  item.Params,
		Browser: w.browser,
		Sink:    w.sink,
		Logger:  w.logger.With(zap.String("job_id", item.JobID), zap.String("task", item.TaskName)),
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

// persistResult writes the result payload to the sink. Sink failures are
// logged, never fatal: the polling API still serves the in-store result.
func (w *Worker) persistResult(ctx context.Context, item scrape.QueueItem, result map[string]any) {
	if w.sink == nil {
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		w.logger.Warn("marshal result for sink failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s.json", item.TaskName, item.JobID)
	uri, err := w.sink.Put(ctx, path, data)
	if err != nil {
		w.logger.Warn("sink write failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	result["result_uri"] = uri
}
