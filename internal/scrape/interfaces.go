package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task is a named, registered scraping capability invoked by a job.
// Implementations own their page interaction logic; the worker only sees
// the returned result map or a classified error.
type Task interface {
	Name() string
	Run(ctx context.Context, in RunInput) (map[string]any, error)
}

// RunInput carries everything a task needs for a single job execution.
// Each job gets a fresh, isolated browsing context from the runtime so no
// state leaks between scrapes.
type RunInput struct {
	JobID   string
	Params  Params
	Browser BrowserRuntime
	Sink    ResultSink
	Logger  *zap.Logger
}

// BrowserRuntime hands out isolated browser sessions.
type BrowserRuntime interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one isolated browsing context, owned by a single job. All
// blocking operations honor the context.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// JobStore holds job records. Terminal transitions are one-shot: once a
// job is finished or errored the store rejects further mutation.
type JobStore interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (Job, error)
	Delete(ctx context.Context, jobID string) error
	MarkRunning(ctx context.Context, jobID string, at time.Time) error
	Complete(ctx context.Context, jobID string, result map[string]any, at time.Time) error
	Fail(ctx context.Context, jobID string, jobErr JobError, at time.Time) error
	ListRunning(ctx context.Context) ([]Job, error)
	Counts(ctx context.Context) (map[JobStatus]int, error)
}

// Queue provides enqueue/dequeue semantics for pending jobs.
type Queue interface {
	// TryEnqueue returns ErrQueueFull instead of blocking when the bounded
	// backlog is exceeded.
	TryEnqueue(item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// ResultSink persists a job's result payload and returns a URI.
type ResultSink interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RetryPolicy decides whether and when a transient failure is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
