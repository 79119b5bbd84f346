package taskbatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Swind/go-task-batch/core"
	"github.com/sourcegraph/conc"
)

// GoroutineThreadPool manages a set of worker goroutines
// Responsible for pulling jobs from its TaskScheduler and executing them
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        *conc.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.ThreadPool = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a new GoroutineThreadPool.
// Panics if workers is less than 1.
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, core.DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses the
// given handlers and metrics.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	if workers < 1 {
		panic("GoroutineThreadPool: workers must be at least 1")
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewTaskSchedulerWithConfig(id, workers, config),
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.wg = conc.NewWaitGroup()
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		id, ctx := i, tg.ctx
		tg.wg.Go(func() { tg.workerLoop(id, ctx) })
	}
}

// Stop stops the thread pool, dropping queued jobs
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued jobs
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	tg.stopWorkers()
}

// StopGraceful stops the thread pool gracefully, waiting for queued jobs to complete
// Returns error if timeout is exceeded before jobs complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return nil
	}
	tg.runningMu.Unlock()

	err := tg.scheduler.ShutdownGraceful(timeout)
	tg.stopWorkers()
	return err
}

func (tg *GoroutineThreadPool) stopWorkers() {
	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	stopCh := ctx.Done()

	for {
		job, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			// Scheduler closed or context canceled
			return
		}

		tg.scheduler.OnTaskStart()
		tg.runJob(id, ctx, job)
	}
}

func (tg *GoroutineThreadPool) runJob(id int, ctx context.Context, job core.Job) {
	defer func() {
		tg.scheduler.OnTaskEnd()
		if r := recover(); r != nil {
			tg.scheduler.GetPanicHandler().HandlePanic(ctx, fmt.Sprintf("%s/worker-%d", tg.id, id), "", r, debug.Stack())
			tg.scheduler.GetMetrics().RecordTaskPanic(tg.id, r)
		}
	}()
	job(ctx)
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.runningMu.RLock()
	wg := tg.wg
	tg.runningMu.RUnlock()
	if wg != nil {
		wg.Wait()
	}
}

// Post implements core.Executor
func (tg *GoroutineThreadPool) Post(job core.Job) {
	tg.scheduler.Post(job)
}

// TryPost implements core.RejectingExecutor
func (tg *GoroutineThreadPool) TryPost(job core.Job) bool {
	return tg.scheduler.TryPost(job)
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// Stats returns a point-in-time snapshot of the pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      tg.id,
		Workers: tg.workers,
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Running: tg.IsRunning(),
	}
}

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// lookupGlobalThreadPool returns the global pool or nil.
func lookupGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}
