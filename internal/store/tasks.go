package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// SpawnTask enqueues a new durable task. params is marshaled to JSON as-is;
// the caller is responsible for giving it a shape the handler expects.
func (c *Client) SpawnTask(ctx context.Context, id, queue, kind string, params any, opts models.SpawnOptions) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("store: marshaling task params: %w", err)
	}
	retryJSON, err := json.Marshal(opts.RetryStrategy)
	if err != nil {
		return fmt.Errorf("store: marshaling retry strategy: %w", err)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	_, err = c.pool.Exec(ctx,
		`INSERT INTO pipeline_tasks (id, queue, kind, params, max_attempts, retry_strategy, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, queue, kind, paramsJSON, maxAttempts, retryJSON, models.TaskQueued,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// ClaimTask atomically claims the oldest queued (or run-after-due, retried)
// task on queue using SELECT ... FOR UPDATE SKIP LOCKED, so concurrent
// workers never contend on the same row. claimedBy identifies the claiming
// worker; the lease expires after leaseSeconds, after which another worker
// may reclaim the task.
func (c *Client) ClaimTask(ctx context.Context, queue, claimedBy string, leaseSeconds int) (*models.Task, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: beginning claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var t models.Task
	var paramsJSON, stepsJSON, retryJSON, resultJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT id, queue, kind, params, steps, attempt_count, max_attempts, retry_strategy,
		        state, last_error, result, claimed_by, lease_expiry, created_at, updated_at
		 FROM pipeline_tasks
		 WHERE queue = $1 AND state = $2 AND run_after <= now()
		 ORDER BY created_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		queue, models.TaskQueued,
	).Scan(&t.ID, &t.Queue, &t.Kind, &paramsJSON, &stepsJSON, &t.AttemptCount, &t.MaxAttempts,
		&retryJSON, &t.State, &t.LastError, &resultJSON, &t.ClaimedBy, &t.LeaseExpiry,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: claiming task: %w", err)
	}

	lease := time.Now().Add(time.Duration(leaseSeconds) * time.Second)
	_, err = tx.Exec(ctx,
		`UPDATE pipeline_tasks
		 SET state = $2, claimed_by = $3, lease_expiry = $4, attempt_count = attempt_count + 1, updated_at = now()
		 WHERE id = $1`,
		t.ID, models.TaskClaimed, claimedBy, lease,
	)
	if err != nil {
		return nil, fmt.Errorf("store: claiming task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: committing claim: %w", err)
	}

	t.Params = paramsJSON
	t.State = models.TaskClaimed
	t.ClaimedBy = &claimedBy
	t.LeaseExpiry = &lease
	t.AttemptCount++
	t.Steps = map[string]json.RawMessage{}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &t.Steps); err != nil {
			return nil, fmt.Errorf("store: unmarshaling task steps: %w", err)
		}
	}
	if len(retryJSON) > 0 {
		if err := json.Unmarshal(retryJSON, &t.RetryStrategy); err != nil {
			return nil, fmt.Errorf("store: unmarshaling retry strategy: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		t.Result = resultJSON
	}
	return &t, nil
}

// ReclaimExpiredLeases returns claimed tasks whose lease has
// expired back to queued, so another worker can pick them up. This is the
// runtime's crash-recovery path: a worker that died mid-task leaves its
// lease to expire naturally.
func (c *Client) ReclaimExpiredLeases(ctx context.Context, queue string) (int64, error) {
	tag, err := c.pool.Exec(ctx,
		`UPDATE pipeline_tasks
		 SET state = $2, claimed_by = NULL, lease_expiry = NULL, updated_at = now()
		 WHERE queue = $1 AND state = $3 AND lease_expiry IS NOT NULL AND lease_expiry < now()`,
		queue, models.TaskQueued, models.TaskClaimed,
	)
	if err != nil {
		return 0, wrapWriteErr(err)
	}
	return tag.RowsAffected(), nil
}

// SaveTaskStep persists the memoized return value of a single named step,
// merging it into the task's steps map. Called by the runtime immediately
// after a step function returns, before the handler proceeds — the
// persistence boundary that makes replay safe.
func (c *Client) SaveTaskStep(ctx context.Context, taskID, stepName string, value json.RawMessage) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE pipeline_tasks
		 SET steps = jsonb_set(steps, $2, $3::jsonb, true), updated_at = now()
		 WHERE id = $1`,
		taskID, []string{stepName}, value,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// CompleteTask marks a task completed with its handler's final result.
func (c *Client) CompleteTask(ctx context.Context, taskID string, result any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshaling task result: %w", err)
	}
	_, err = c.pool.Exec(ctx,
		`UPDATE pipeline_tasks SET state = $2, result = $3, claimed_by = NULL, lease_expiry = NULL, updated_at = now()
		 WHERE id = $1`,
		taskID, models.TaskCompleted, b,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// FailTask records a failed attempt. If terminal is true the task becomes
// terminally failed; otherwise it is requeued with runAfter honoring the
// retry backoff already computed by the caller.
func (c *Client) FailTask(ctx context.Context, taskID, errMsg string, terminal bool, runAfter time.Time) error {
	state := models.TaskQueued
	if terminal {
		state = models.TaskFailed
	}
	_, err := c.pool.Exec(ctx,
		`UPDATE pipeline_tasks
		 SET state = $2, last_error = $3, claimed_by = NULL, lease_expiry = NULL,
		     run_after = $4, updated_at = now()
		 WHERE id = $1`,
		taskID, state, errMsg, runAfter,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// CancelTask cancels a task still in queued or claimed state. A task
// already completed or failed is left untouched (cancellation is terminal,
// not a transition out of another terminal state).
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE pipeline_tasks SET state = $2, updated_at = now()
		 WHERE id = $1 AND state IN ($3, $4)`,
		taskID, models.TaskCancelled, models.TaskQueued, models.TaskClaimed,
	)
	if err != nil {
		return wrapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTaskStatus returns the compact status shape reported for a taskId
// lookup.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	var s models.TaskStatus
	err := c.pool.QueryRow(ctx,
		`SELECT state, attempt_count, last_error, result FROM pipeline_tasks WHERE id = $1`,
		taskID,
	).Scan(&s.State, &s.AttemptCount, &s.LastError, &s.Result)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	return &s, nil
}

// CountActiveTasks counts tasks currently claimed on queue, used by the
// worker pool's capacity check.
func (c *Client) CountActiveTasks(ctx context.Context, queue string) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx,
		`SELECT count(*) FROM pipeline_tasks WHERE queue = $1 AND state = $2`,
		queue, models.TaskClaimed,
	).Scan(&n)
	if err != nil {
		return 0, wrapReadErr(err)
	}
	return n, nil
}
