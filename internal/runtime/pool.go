package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pool manages a pool of runtime workers sharing one Registry and polling
// one queue.
type Pool struct {
	store    TaskStore
	registry *Registry
	config   Config
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu              sync.Mutex
	started         bool
	lastReclaimScan time.Time
	tasksReclaimed  int
}

// NewPool creates a new worker pool.
func NewPool(store TaskStore, registry *Registry, cfg Config) *Pool {
	return &Pool{
		store:    store,
		registry: registry,
		config:   cfg,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns worker goroutines and the lease-reclaim background task. Safe
// to call multiple times; later calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		slog.Warn("worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true
	p.mu.Unlock()

	slog.Info("starting worker pool", "queue", p.config.Queue, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.config.Queue, i)
		worker := NewWorker(workerID, p.store, p.registry, p.config)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runReclaimLoop(ctx)
	}()
}

// Stop signals all workers to stop and waits for their current tasks to
// finish.
func (p *Pool) Stop() {
	slog.Info("stopping worker pool gracefully")
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped gracefully")
}

// Health returns the current health status of the pool.
func (p *Pool) Health(ctx context.Context) *PoolHealth {
	active, err := p.store.CountActiveTasks(ctx, p.config.Queue)
	storeErr := ""
	if err != nil {
		storeErr = err.Error()
	}

	stats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, w := range p.workers {
		s := w.Health()
		stats[i] = s
		if s.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	p.mu.Lock()
	lastScan := p.lastReclaimScan
	reclaimed := p.tasksReclaimed
	p.mu.Unlock()

	storeHealthy := err == nil
	return &PoolHealth{
		IsHealthy:       len(p.workers) > 0 && storeHealthy,
		StoreReachable:  storeHealthy,
		StoreError:      storeErr,
		ActiveWorkers:   activeWorkers,
		TotalWorkers:    len(p.workers),
		ActiveTasks:     active,
		MaxConcurrent:   p.config.MaxConcurrentTasks,
		WorkerStats:     stats,
		LastReclaimScan: lastScan,
		TasksReclaimed:  reclaimed,
	}
}

// runReclaimLoop periodically reclaims tasks whose lease has expired,
// returning them to the queue for another worker to pick up.
func (p *Pool) runReclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.ReclaimScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.store.ReclaimExpiredLeases(ctx, p.config.Queue)
			if err != nil {
				slog.Error("lease reclaim scan failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("reclaimed tasks with expired leases", "count", n)
			}
			p.mu.Lock()
			p.lastReclaimScan = time.Now()
			p.tasksReclaimed += int(n)
			p.mu.Unlock()
		}
	}
}
