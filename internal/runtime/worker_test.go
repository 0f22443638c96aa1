package runtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/store"
)

// fakeStore is an in-memory TaskStore used to exercise the worker loop
// without a live Postgres.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*models.Task{}}
}

func (f *fakeStore) SpawnTask(ctx context.Context, id, queue, kind string, params any, opts models.SpawnOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := json.Marshal(params)
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	f.tasks[id] = &models.Task{
		ID: id, Queue: queue, Kind: kind, Params: b,
		Steps: map[string]json.RawMessage{}, MaxAttempts: maxAttempts,
		RetryStrategy: opts.RetryStrategy, State: models.TaskQueued,
	}
	return nil
}

func (f *fakeStore) ClaimTask(ctx context.Context, queue, claimedBy string, leaseSeconds int) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.Queue == queue && t.State == models.TaskQueued {
			t.State = models.TaskClaimed
			t.AttemptCount++
			cp := *t
			cp.Steps = map[string]json.RawMessage{}
			for k, v := range t.Steps {
				cp.Steps[k] = v
			}
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ReclaimExpiredLeases(ctx context.Context, queue string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) SaveTaskStep(ctx context.Context, taskID, stepName string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[taskID].Steps[stepName] = value
	return nil
}

func (f *fakeStore) CompleteTask(ctx context.Context, taskID string, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := json.Marshal(result)
	f.tasks[taskID].State = models.TaskCompleted
	f.tasks[taskID].Result = b
	return nil
}

func (f *fakeStore) FailTask(ctx context.Context, taskID, errMsg string, terminal bool, runAfter time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tasks[taskID]
	t.LastError = &errMsg
	if terminal {
		t.State = models.TaskFailed
	} else {
		t.State = models.TaskQueued
	}
	return nil
}

func (f *fakeStore) CancelTask(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[taskID].State = models.TaskCancelled
	return nil
}

func (f *fakeStore) GetTaskStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.TaskStatus{State: t.State, AttemptCount: t.AttemptCount, LastError: t.LastError, Result: t.Result}, nil
}

func (f *fakeStore) CountActiveTasks(ctx context.Context, queue string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tasks {
		if t.Queue == queue && t.State == models.TaskClaimed {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) state(id string) models.TaskState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id].State
}

func TestWorker_ExecutesHandlerAndCompletes(t *testing.T) {
	fs := newFakeStore()
	registry := NewRegistry()
	registry.Register("echo", func(ctx context.Context, step *StepContext, params json.RawMessage) (any, error) {
		n, err := Step(ctx, step, "double", func(ctx context.Context) (int, error) {
			var in struct{ N int }
			require.NoError(t, json.Unmarshal(params, &in))
			return in.N * 2, nil
		})
		require.NoError(t, err)
		return map[string]int{"doubled": n}, nil
	})

	id, err := Spawn(context.Background(), fs, "default", "echo", map[string]int{"N": 21}, models.SpawnOptions{MaxAttempts: 1})
	require.NoError(t, err)

	cfg := DefaultConfig("default")
	w := NewWorker("w1", fs, registry, cfg)
	require.NoError(t, w.pollAndProcess(context.Background()))

	assert.Equal(t, models.TaskCompleted, fs.state(id))
}

func TestWorker_RetriesOnFailureUntilMaxAttempts(t *testing.T) {
	fs := newFakeStore()
	registry := NewRegistry()
	registry.Register("boom", func(ctx context.Context, step *StepContext, params json.RawMessage) (any, error) {
		return nil, assertErr
	})

	id, err := Spawn(context.Background(), fs, "default", "boom", struct{}{}, models.SpawnOptions{
		MaxAttempts:   2,
		RetryStrategy: models.RetryStrategy{Kind: models.RetryFixed, BaseSeconds: 1},
	})
	require.NoError(t, err)

	cfg := DefaultConfig("default")
	w := NewWorker("w1", fs, registry, cfg)

	require.NoError(t, w.pollAndProcess(context.Background()))
	assert.Equal(t, models.TaskQueued, fs.state(id))

	require.NoError(t, w.pollAndProcess(context.Background()))
	assert.Equal(t, models.TaskFailed, fs.state(id))
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
