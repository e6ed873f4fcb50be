// Package memory provides the in-memory job store used by default. Job
// state lives only for the lifetime of the process; a status request after
// restart reports not found.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// JobStore holds job records behind a single mutex. Individual records are
// single-owner from running onward; the lock only guards the index.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]scrape.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]scrape.Job),
	}
}

// Create stores a new job in pending status.
func (s *JobStore) Create(_ context.Context, job scrape.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	job.Params = job.Params.Clone()
	s.jobs[job.ID] = job
	return nil
}

// Get fetches a job snapshot by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (scrape.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrJobNotFound
	}
	return job, nil
}

// Delete removes a job record. Used to roll back a submission whose
// enqueue was rejected, so no orphan pending record remains.
func (s *JobStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return scrape.ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

// MarkRunning transitions a pending job to running and stamps started_at.
func (s *JobStore) MarkRunning(_ context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
	}
	job.Status = scrape.JobStatusRunning
	if job.Started == nil {
		job.Started = pointerTime(at)
	}
	s.jobs[jobID] = job
	return nil
}

// Complete publishes the terminal finished state with its result. Terminal
// states are immutable: a second terminal transition is rejected so a job
// can never carry both a result and an error.
func (s *JobStore) Complete(_ context.Context, jobID string, result map[string]any, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
	}
	job.Status = scrape.JobStatusFinished
	job.Result = result
	job.Error = nil
	job.Finished = pointerTime(at)
	s.jobs[jobID] = job
	return nil
}

// Fail publishes the terminal error state with its classified error.
func (s *JobStore) Fail(_ context.Context, jobID string, jobErr scrape.JobError, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
	}
	job.Status = scrape.JobStatusError
	job.Error = &jobErr
	job.Result = nil
	job.Finished = pointerTime(at)
	s.jobs[jobID] = job
	return nil
}

// ListRunning returns snapshots of all jobs currently running.
func (s *JobStore) ListRunning(_ context.Context) ([]scrape.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var running []scrape.Job
	for _, job := range s.jobs {
		if job.Status == scrape.JobStatusRunning {
			running = append(running, job)
		}
	}
	return running, nil
}

// Counts returns the number of jobs per status.
func (s *JobStore) Counts(_ context.Context) (map[scrape.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[scrape.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
