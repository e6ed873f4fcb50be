// Package jobs coordinates job submission, lookup, and lifecycle
// enforcement on top of the store and the queue.
package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/metrics"
	"github.com/scrapekit/browserjobs/internal/registry"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Config controls Manager behavior.
type Config struct {
	// Workers is the configured pool size, reported in Stats.
	Workers int
	// JobTimeout is the per-job execution bound enforced by the watchdog.
	JobTimeout time.Duration
	// WatchdogInterval is how often running jobs are checked against the
	// timeout. Zero picks a sensible default.
	WatchdogInterval time.Duration
}

const defaultWatchdogInterval = 30 * time.Second

// Manager is the front door for jobs: it validates submissions, hands
// out snapshots to the API, and expires jobs that overrun their budget.
type Manager struct {
	registry *registry.Registry
	jobStore scrape.JobStore
	queue    scrape.Queue
	ids      scrape.IDGenerator
	clock    scrape.Clock
	cfg      Config
	logger   *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(
	reg *registry.Registry,
	jobStore scrape.JobStore,
	queue scrape.Queue,
	ids scrape.IDGenerator,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = defaultWatchdogInterval
	}
	return &Manager{
		registry: reg,
		jobStore: jobStore,
		queue:    queue,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit validates the task name, creates a pending record, and enqueues
// it. Unknown tasks are rejected before any record exists; a full queue
// rolls the record back so no orphaned pending job is left behind.
func (m *Manager) Submit(ctx context.Context, taskName string, params scrape.Params) (string, error) {
	name := registry.Normalise(taskName)
	if _, err := m.registry.Resolve(name); err != nil {
		return "", err
	}

	id, err := m.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	job := scrape.Job{
		ID:       id,
		TaskName: name,
		Params:   params.Clone(),
		Status:   scrape.JobStatusPending,
		Created:  m.clock.Now(),
	}
	if err := m.jobStore.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}

	if err := m.queue.TryEnqueue(scrape.QueueItem{
		JobID:     id,
		TaskName:  name,
		Params:    job.Params,
		Submitted: job.Created,
	}); err != nil {
		if delErr := m.jobStore.Delete(ctx, id); delErr != nil {
			m.logger.Error("rollback of unqueued job failed",
				zap.String("job_id", id), zap.Error(delErr))
		}
		return "", err
	}

	metrics.JobSubmitted(name)
	m.logger.Info("job submitted", zap.String("job_id", id), zap.String("task", name))
	return id, nil
}

// JobView is a read snapshot of a job record plus derived status text.
type JobView struct {
	Job               scrape.Job
	StatusWithElapsed string
}

// Get returns a snapshot of the job, or ErrJobNotFound.
func (m *Manager) Get(ctx context.Context, jobID string) (JobView, error) {
	job, err := m.jobStore.Get(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	return JobView{
		Job:               job,
		StatusWithElapsed: job.StatusWithElapsed(m.clock.Now()),
	}, nil
}

// Stats summarizes queue state for the stats endpoint.
type Stats struct {
	Counts  map[scrape.JobStatus]int `json:"counts"`
	Running []RunningJob             `json:"running"`
	Workers int                      `json:"workers"`
}

// RunningJob is one in-flight job in a Stats snapshot.
type RunningJob struct {
	JobID   string `json:"job_id"`
	Task    string `json:"task"`
	Elapsed string `json:"elapsed"`
}

// Stats reports per-status counts and the currently running jobs.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	counts, err := m.jobStore.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	running, err := m.jobStore.ListRunning(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := m.clock.Now()
	out := Stats{Counts: counts, Workers: m.cfg.Workers}
	for _, job := range running {
		out.Running = append(out.Running, RunningJob{
			JobID:   job.ID,
			Task:    job.TaskName,
			Elapsed: job.StatusWithElapsed(now),
		})
	}
	return out, nil
}

// RunWatchdog periodically forces jobs that have run past the timeout
// into the error state. The worker's own context deadline normally fires
// first; this is the backstop for a wedged browser process.
func (m *Manager) RunWatchdog(ctx context.Context) {
	if m.cfg.JobTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expireOverdue(ctx)
		}
	}
}

func (m *Manager) expireOverdue(ctx context.Context) {
	running, err := m.jobStore.ListRunning(ctx)
	if err != nil {
		m.logger.Error("watchdog list running failed", zap.Error(err))
		return
	}
	now := m.clock.Now()
	for _, job := range running {
		if job.Started == nil || now.Sub(*job.Started) <= m.cfg.JobTimeout {
			continue
		}
		jobErr := scrape.JobError{
			Kind:    scrape.ErrorKindTimeout,
			Message: fmt.Sprintf("job timed out after %d seconds", int(m.cfg.JobTimeout.Seconds())),
		}
		if err := m.jobStore.Fail(ctx, job.ID, jobErr, now); err != nil {
			// The worker may have published its own terminal state in
			// the meantime; that race is benign.
			m.logger.Debug("watchdog expire skipped", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		metrics.JobCompleted(job.TaskName, string(scrape.JobStatusError))
		m.logger.Warn("job expired by watchdog",
			zap.String("job_id", job.ID),
			zap.String("task", job.TaskName),
			zap.Duration("elapsed", now.Sub(*job.Started)),
		)
	}
}
