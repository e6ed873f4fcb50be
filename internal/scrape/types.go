// Package scrape defines core types shared across subsystems.
package scrape

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values held in the job store. A job is created pending,
// moves to running when a worker picks it up, and ends in exactly one
// of finished or error.
const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
	JobStatusError    JobStatus = "error"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusError
}

// Params carries the client-supplied task parameters as submitted.
type Params map[string]any

// String returns the string value for key, or def when absent or not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns the integer value for key, tolerating the float64 values
// produced by JSON decoding.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the float value for key, or def.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Bool returns the boolean value for key, or def.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Clone returns a shallow copy so stored jobs do not alias caller maps.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	cp := make(Params, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

// Job is the metadata record for one submitted scrape request.
// Once created it is owned by the job store; workers publish state
// transitions through the store, callers only read snapshots.
type Job struct {
	ID       string         `json:"id"`
	TaskName string         `json:"task_name"`
	Params   Params         `json:"params"`
	Status   JobStatus      `json:"status"`
	Created  time.Time      `json:"created_at"`
	Started  *time.Time     `json:"started_at,omitempty"`
	Finished *time.Time     `json:"finished_at,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    *JobError      `json:"error,omitempty"`
}

// StatusWithElapsed renders the status for polling clients, including the
// running duration while the job is in flight ("running 1m 5s").
func (j Job) StatusWithElapsed(now time.Time) string {
	if j.Status != JobStatusRunning || j.Started == nil {
		return string(j.Status)
	}
	elapsed := int(now.Sub(*j.Started).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed < 60:
		return fmt.Sprintf("running %ds", elapsed)
	case elapsed < 3600:
		return fmt.Sprintf("running %dm %ds", elapsed/60, elapsed%60)
	default:
		return fmt.Sprintf("running %dh %dm", elapsed/3600, (elapsed%3600)/60)
	}
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	TaskName  string
	Params    Params
	Submitted time.Time
}
