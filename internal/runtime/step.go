package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linkmind-dev/linkmind/internal/models"
)

// StepContext is passed to a Handler and memoizes the result of each named
// step against the claimed task. A step function runs at most once per
// task: the first call persists its return value keyed by (taskId, name);
// every later resumption (after a crash, a lease expiry, or a re-claim)
// returns the memoized value without re-running fn.
type StepContext struct {
	taskID string
	store  TaskStore
	steps  map[string]json.RawMessage
}

func newStepContext(taskID string, store TaskStore, steps map[string]json.RawMessage) *StepContext {
	if steps == nil {
		steps = map[string]json.RawMessage{}
	}
	return &StepContext{taskID: taskID, store: store, steps: steps}
}

// NewStepContextForTesting builds a StepContext for handler-level tests in
// other packages, which cannot reach the unexported constructor used by the
// worker itself.
func NewStepContextForTesting(taskID string, store TaskStore, steps map[string]json.RawMessage) *StepContext {
	return newStepContext(taskID, store, steps)
}

// Step runs fn at most once for this task. On replay, the previously
// persisted return value is unmarshaled into a fresh T and returned without
// invoking fn. fn must either be naturally idempotent or perform its side
// effect before returning, per the runtime's idempotence requirement — step
// authors are responsible for this, the runtime only guarantees fn itself
// does not run twice.
func Step[T any](ctx context.Context, step *StepContext, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if raw, ok := step.steps[name]; ok {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, fmt.Errorf("runtime: unmarshaling memoized step %q: %w", name, err)
		}
		return v, nil
	}

	v, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("runtime: marshaling step %q result: %w", name, err)
	}
	if err := step.store.SaveTaskStep(ctx, step.taskID, name, raw); err != nil {
		return zero, fmt.Errorf("runtime: persisting step %q: %w", name, err)
	}
	step.steps[name] = raw

	return v, nil
}

// HasStep reports whether name has already been memoized for this task,
// letting a handler branch (e.g. refresh-related's "reuse stored vector
// else run embed") without forcing a re-run just to check.
func (s *StepContext) HasStep(name string) bool {
	_, ok := s.steps[name]
	return ok
}

// suspendedResult is the well-known result value process-link returns when
// the scrape step suspends on a probe-required URL, recognized by the
// worker so it completes the task as a clean success rather than an error.
type suspendedResult struct {
	Status models.LinkStatus `json:"status"`
}

// Suspended is the process-link handler's result when the scrape step took
// the probe-required sub-path: the task completes immediately with this
// result, and is never re-resumed — the next process-link task for the
// same link is a brand new spawn from HandleProbeResult.
func Suspended() any {
	return suspendedResult{Status: models.LinkStatusWaitingProbe}
}
