// Package redis provides a Redis-backed job store. It mirrors the memory
// store's semantics so the two are interchangeable behind scrape.JobStore;
// job keys expire after a TTL since the service makes no durability
// promise beyond a job's useful lifetime.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

const jobKeyPrefix = "job:"

// JobStore implements scrape.JobStore on go-redis/v9.
type JobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobStore creates a store from a Redis URL and verifies connectivity.
func NewJobStore(ctx context.Context, redisURL string, ttl time.Duration) (*JobStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &JobStore{client: client, ttl: ttl}, nil
}

// Close releases the underlying client.
func (s *JobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func statusSet(status scrape.JobStatus) string {
	return "jobs:" + string(status)
}

// Create stores a new job in pending status.
func (s *JobStore) Create(ctx context.Context, job scrape.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	created, err := s.client.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	if !created {
		return errors.New("job already exists")
	}
	if err := s.client.SAdd(ctx, statusSet(scrape.JobStatusPending), job.ID).Err(); err != nil {
		return fmt.Errorf("index job: %w", err)
	}
	return nil
}

// Get fetches a job snapshot by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (scrape.Job, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return scrape.Job{}, scrape.ErrJobNotFound
	}
	if err != nil {
		return scrape.Job{}, fmt.Errorf("fetch job: %w", err)
	}
	var job scrape.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return scrape.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

// Delete removes a job record and its status index entry.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jobID))
	pipe.SRem(ctx, statusSet(job.Status), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// MarkRunning transitions a pending job to running.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string, at time.Time) error {
	return s.update(ctx, jobID, func(job *scrape.Job) error {
		if job.Status.Terminal() {
			return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
		}
		job.Status = scrape.JobStatusRunning
		if job.Started == nil {
			started := at
			job.Started = &started
		}
		return nil
	})
}

// Complete publishes the terminal finished state with its result.
func (s *JobStore) Complete(ctx context.Context, jobID string, result map[string]any, at time.Time) error {
	return s.update(ctx, jobID, func(job *scrape.Job) error {
		if job.Status.Terminal() {
			return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
		}
		job.Status = scrape.JobStatusFinished
		job.Result = result
		job.Error = nil
		finished := at
		job.Finished = &finished
		return nil
	})
}

// Fail publishes the terminal error state with its classified error.
func (s *JobStore) Fail(ctx context.Context, jobID string, jobErr scrape.JobError, at time.Time) error {
	return s.update(ctx, jobID, func(job *scrape.Job) error {
		if job.Status.Terminal() {
			return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
		}
		job.Status = scrape.JobStatusError
		job.Error = &jobErr
		job.Result = nil
		finished := at
		job.Finished = &finished
		return nil
	})
}

// ListRunning returns snapshots of all jobs currently running.
func (s *JobStore) ListRunning(ctx context.Context) ([]scrape.Job, error) {
	ids, err := s.client.SMembers(ctx, statusSet(scrape.JobStatusRunning)).Result()
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	var running []scrape.Job
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, scrape.ErrJobNotFound) {
			// Expired record still indexed; drop the stale entry.
			_ = s.client.SRem(ctx, statusSet(scrape.JobStatusRunning), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		running = append(running, job)
	}
	return running, nil
}

// Counts returns the number of jobs per status.
func (s *JobStore) Counts(ctx context.Context) (map[scrape.JobStatus]int, error) {
	counts := make(map[scrape.JobStatus]int)
	for _, status := range []scrape.JobStatus{
		scrape.JobStatusPending,
		scrape.JobStatusRunning,
		scrape.JobStatusFinished,
		scrape.JobStatusError,
	} {
		n, err := s.client.SCard(ctx, statusSet(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("count %s jobs: %w", status, err)
		}
		if n > 0 {
			counts[status] = int(n)
		}
	}
	return counts, nil
}

// maxUpdateRetries bounds the optimistic-transaction retry loop; contention
// on a single job key is rare and short-lived.
const maxUpdateRetries = 5

// update applies a mutation to the stored job and re-indexes its status.
// The read-modify-write runs under WATCH so two writers racing on the same
// job (a worker completion against the watchdog) cannot both pass the
// terminal check; the loser re-reads and sees the terminal state.
func (s *JobStore) update(ctx context.Context, jobID string, mutate func(*scrape.Job) error) error {
	key := jobKey(jobID)
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return scrape.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("fetch job: %w", err)
		}
		var job scrape.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}
		prev := job.Status
		if err := mutate(&job); err != nil {
			return err
		}
		out, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			if prev != job.Status {
				pipe.SMove(ctx, statusSet(prev), statusSet(job.Status), jobID)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		return nil
	}

	var err error
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update job: %w", err)
}
