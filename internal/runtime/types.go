// Package runtime is the Durable Task Runtime: a job queue with per-step
// memoization that acts as the Pipeline's execution engine. A worker pool
// cooperatively polls the Store Gateway's pipeline_tasks table, claims work
// under a lease, and runs registered handlers that checkpoint their
// progress one step at a time.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// Sentinel errors for runtime operations.
var (
	// ErrNoTasksAvailable indicates no queued tasks are ready to claim.
	ErrNoTasksAvailable = errors.New("no tasks available")

	// ErrAtCapacity indicates the worker pool's concurrency limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// Handler is a registered task kind's entry point. It receives the task's
// params and a StepContext bound to that task, and returns the task's final
// result (persisted as-is) or an error that drives the retry policy.
type Handler func(ctx context.Context, step *StepContext, params json.RawMessage) (any, error)

// TaskStore is the subset of the Store Gateway the runtime depends on.
// Declared here (rather than importing *store.Client directly) so the
// runtime can be tested against a fake without dragging in pgx.
type TaskStore interface {
	SpawnTask(ctx context.Context, id, queue, kind string, params any, opts models.SpawnOptions) error
	ClaimTask(ctx context.Context, queue, claimedBy string, leaseSeconds int) (*models.Task, error)
	ReclaimExpiredLeases(ctx context.Context, queue string) (int64, error)
	SaveTaskStep(ctx context.Context, taskID, stepName string, value json.RawMessage) error
	CompleteTask(ctx context.Context, taskID string, result any) error
	FailTask(ctx context.Context, taskID, errMsg string, terminal bool, runAfter time.Time) error
	CancelTask(ctx context.Context, taskID string) error
	GetTaskStatus(ctx context.Context, taskID string) (*models.TaskStatus, error)
	CountActiveTasks(ctx context.Context, queue string) (int, error)
}

// PoolHealth reports the worker pool's aggregate state.
type PoolHealth struct {
	IsHealthy       bool           `json:"is_healthy"`
	StoreReachable  bool           `json:"store_reachable"`
	StoreError      string         `json:"store_error,omitempty"`
	WorkerID        string         `json:"worker_id"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalWorkers    int            `json:"total_workers"`
	ActiveTasks     int            `json:"active_tasks"`
	MaxConcurrent   int            `json:"max_concurrent"`
	WorkerStats     []WorkerHealth `json:"worker_stats"`
	LastReclaimScan time.Time      `json:"last_reclaim_scan"`
	TasksReclaimed  int            `json:"tasks_reclaimed"`
}

// WorkerHealth reports a single worker's state.
type WorkerHealth struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"` // "idle" or "working"
	CurrentTaskID   string    `json:"current_task_id,omitempty"`
	TasksProcessed  int       `json:"tasks_processed"`
	LastActivity    time.Time `json:"last_activity"`
}
