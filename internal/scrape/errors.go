package scrape

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors surfaced synchronously at submission time.
var (
	// ErrUnknownTask means the submitted task name is not registered.
	ErrUnknownTask = errors.New("unknown task")
	// ErrJobNotFound means the requested job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull means the bounded backlog rejected the submission.
	ErrQueueFull = errors.New("job queue full")
	// ErrInvalidLevel means the requested extraction level is outside [1,4].
	ErrInvalidLevel = errors.New("invalid extraction level")
)

// ErrorKind classifies a job failure for polling clients.
type ErrorKind string

// Error kinds recorded on failed jobs.
const (
	ErrorKindBadParams  ErrorKind = "bad_params"
	ErrorKindNavigation ErrorKind = "navigation"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindInternal   ErrorKind = "internal"
)

// JobError is the classified failure recorded on a job record.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NavigationError marks a page load or element wait that exceeded its
// timeout. Navigation errors are retried at the pagination layer before
// failing the job.
type NavigationError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed for %s: %v", e.URL, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ParamError marks invalid or missing task parameters, detected before any
// browser interaction.
type ParamError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Reason)
}

// Classify maps an execution error onto the taxonomy recorded on the job.
// Anything unrecognized is reported as an internal failure; it must never
// escape the worker loop.
func Classify(err error) JobError {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return *jobErr
	}
	var paramErr *ParamError
	if errors.As(err, &paramErr) {
		return JobError{Kind: ErrorKindBadParams, Message: paramErr.Error()}
	}
	var navErr *NavigationError
	if errors.As(err, &navErr) {
		return JobError{Kind: ErrorKindNavigation, Message: navErr.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return JobError{Kind: ErrorKindTimeout, Message: err.Error()}
	}
	return JobError{Kind: ErrorKindInternal, Message: err.Error()}
}
