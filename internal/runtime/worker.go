package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/store"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Config controls how workers poll, claim, and retry tasks.
type Config struct {
	Queue                 string
	WorkerCount           int
	MaxConcurrentTasks    int
	PollInterval          time.Duration
	PollIntervalJitter    time.Duration
	ClaimLeaseSeconds     int
	ReclaimScanInterval   time.Duration
}

// DefaultConfig returns the runtime's built-in defaults.
func DefaultConfig(queue string) Config {
	return Config{
		Queue:               queue,
		WorkerCount:         2,
		MaxConcurrentTasks:  2,
		PollInterval:        1 * time.Second,
		PollIntervalJitter:  500 * time.Millisecond,
		ClaimLeaseSeconds:   300,
		ReclaimScanInterval: 1 * time.Minute,
	}
}

// Worker is a single runtime worker that polls for and processes tasks on
// one queue.
type Worker struct {
	id       string
	store    TaskStore
	registry *Registry
	config   Config
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

// NewWorker creates a new runtime worker.
func NewWorker(id string, store TaskStore, registry *Registry, cfg Config) *Worker {
	return &Worker{
		id:           id,
		store:        store,
		registry:     registry,
		config:       cfg,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for its current task to finish.
// Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoTasksAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing task", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a task, and runs its handler to
// completion.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	active, err := w.store.CountActiveTasks(ctx, w.config.Queue)
	if err != nil {
		return fmt.Errorf("checking active tasks: %w", err)
	}
	if active >= w.config.MaxConcurrentTasks {
		return ErrAtCapacity
	}

	task, err := w.store.ClaimTask(ctx, w.config.Queue, w.id, w.config.ClaimLeaseSeconds)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoTasksAvailable
		}
		return fmt.Errorf("claiming task: %w", err)
	}

	log := slog.With("task_id", task.ID, "kind", task.Kind, "worker_id", w.id)
	log.Info("task claimed")

	w.setStatus(WorkerStatusWorking, task.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	taskCtx, cancel := context.WithTimeout(ctx, time.Duration(w.config.ClaimLeaseSeconds)*time.Second)
	defer cancel()

	w.execute(taskCtx, task)

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()

	log.Info("task processing complete")
	return nil
}

// execute runs task's handler and applies the runtime's completion/retry
// semantics based on the outcome.
func (w *Worker) execute(ctx context.Context, task *models.Task) {
	log := slog.With("task_id", task.ID, "kind", task.Kind)

	handler, ok := w.registry.Lookup(task.Kind)
	if !ok {
		w.failTerminal(ctx, task, fmt.Sprintf("no handler registered for kind %q", task.Kind))
		return
	}

	step := newStepContext(task.ID, w.store, task.Steps)
	result, err := handler(ctx, step, task.Params)
	if err != nil {
		w.handleFailure(ctx, task, err)
		return
	}

	if err := w.store.CompleteTask(context.Background(), task.ID, result); err != nil {
		log.Error("failed to persist task completion", "error", err)
	}
}

// handleFailure applies the task's retry policy: if attempts remain, the
// task is requeued after the configured backoff; otherwise it is marked
// terminally failed.
func (w *Worker) handleFailure(ctx context.Context, task *models.Task, cause error) {
	log := slog.With("task_id", task.ID, "kind", task.Kind)
	log.Warn("task attempt failed", "error", cause, "attempt", task.AttemptCount, "max_attempts", task.MaxAttempts)

	bg := context.Background()
	if task.AttemptCount >= task.MaxAttempts {
		w.failTerminal(bg, task, cause.Error())
		return
	}

	delay := backoffDelay(task.RetryStrategy, task.AttemptCount)
	if err := w.store.FailTask(bg, task.ID, cause.Error(), false, time.Now().Add(delay)); err != nil {
		log.Error("failed to record retry", "error", err)
	}
}

func (w *Worker) failTerminal(ctx context.Context, task *models.Task, errMsg string) {
	if err := w.store.FailTask(ctx, task.ID, errMsg, true, time.Now()); err != nil {
		slog.Error("failed to mark task failed", "task_id", task.ID, "error", err)
	}
}

// backoffDelay computes the delay before the next attempt given strategy
// and the attempt number just completed (1-indexed).
func backoffDelay(strategy models.RetryStrategy, attempt int) time.Duration {
	base := time.Duration(strategy.BaseSeconds) * time.Second
	if base <= 0 {
		base = 10 * time.Second
	}

	var delay time.Duration
	switch strategy.Kind {
	case models.RetryExponential:
		factor := strategy.Factor
		if factor <= 0 {
			factor = 2
		}
		delay = time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	default: // RetryFixed
		delay = base
	}

	if strategy.MaxSeconds > 0 {
		cap := time.Duration(strategy.MaxSeconds) * time.Second
		if delay > cap {
			delay = cap
		}
	}
	return delay
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
