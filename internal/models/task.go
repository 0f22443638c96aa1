package models

import (
	"encoding/json"
	"time"
)

// TaskState is the lifecycle state of a PipelineTask.
type TaskState string

// Task states.
const (
	TaskQueued    TaskState = "queued"
	TaskClaimed   TaskState = "claimed"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// RetryStrategyKind selects how the delay between attempts grows.
type RetryStrategyKind string

// Retry strategy kinds.
const (
	RetryExponential RetryStrategyKind = "exponential"
	RetryFixed       RetryStrategyKind = "fixed"
)

// RetryStrategy describes the backoff applied between failed attempts.
type RetryStrategy struct {
	Kind       RetryStrategyKind `json:"kind"`
	BaseSeconds int              `json:"base_seconds"`
	Factor      float64          `json:"factor,omitempty"`
	MaxSeconds  int              `json:"max_seconds,omitempty"`
}

// SpawnOptions configures a task at enqueue time.
type SpawnOptions struct {
	MaxAttempts   int
	RetryStrategy RetryStrategy
}

// Task is a single durable task row: a queued invocation of a registered
// handler kind, plus the memoized return value of every step it has
// completed so far.
type Task struct {
	ID            string          `json:"id"`
	Queue         string          `json:"queue"`
	Kind          string          `json:"kind"`
	Params        json.RawMessage `json:"params"`
	Steps         map[string]json.RawMessage `json:"-"`
	AttemptCount  int             `json:"attempt_count"`
	MaxAttempts   int             `json:"max_attempts"`
	RetryStrategy RetryStrategy   `json:"-"`
	State         TaskState       `json:"state"`
	LastError     *string         `json:"last_error,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	ClaimedBy     *string         `json:"-"`
	LeaseExpiry   *time.Time      `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TaskStatus is the compact shape returned by taskId lookups.
type TaskStatus struct {
	State        TaskState       `json:"state"`
	AttemptCount int             `json:"attempt_count"`
	LastError    *string         `json:"last_error,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}
