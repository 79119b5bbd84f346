package taskbatch

import "github.com/Swind/go-task-batch/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskbatch package for most use cases.

// Task is one unit of asynchronous work plus a diagnostic name
type Task[T any] = core.Task[T]

// WorkFunc is the body of a Task
type WorkFunc[T any] = core.WorkFunc[T]

// Done is the completion callback handed to a WorkFunc
type Done[T any] = core.Done[T]

// CompletionHandler receives the Result Collection
type CompletionHandler[T any] = core.CompletionHandler[T]

// Coordinator drives a Task list in queue or pool mode
type Coordinator[T any] = core.Coordinator[T]

// Config is the explicit per-Coordinator configuration
type Config = core.Config

// Mode selects sequential or chunked concurrent execution
type Mode = core.Mode

// Mode constants
const (
	ModeQueue = core.ModeQueue
	ModePool  = core.ModePool
)

// DefaultChunkSize is the pool-mode concurrency bound used when Config.ChunkSize is zero
const DefaultChunkSize = core.DefaultChunkSize

// Sentinel errors
var (
	ErrQuit              = core.ErrQuit
	ErrTimeout           = core.ErrTimeout
	ErrAddAfterStart     = core.ErrAddAfterStart
	ErrDuplicateCallback = core.ErrDuplicateCallback
)

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// DefaultConfig returns a fresh Config with every default applied.
var DefaultConfig = core.DefaultConfig

// Blocking adapts a synchronous function into a WorkFunc.
func Blocking[T any](fn func() T) WorkFunc[T] {
	return core.Blocking(fn)
}

// New creates a Coordinator with default configuration. When the global
// thread pool is initialized, work functions run on it; otherwise they run
// inline on the goroutine that dispatches them.
func New[T any](tasks ...Task[T]) *Coordinator[T] {
	cfg := core.DefaultConfig()
	if pool := lookupGlobalThreadPool(); pool != nil {
		cfg.Executor = pool
	}
	return core.NewCoordinator(cfg, tasks...)
}

// NewWithConfig creates a Coordinator from cfg, applying defaults to zero fields.
func NewWithConfig[T any](cfg Config, tasks ...Task[T]) *Coordinator[T] {
	return core.NewCoordinator(cfg, tasks...)
}

// Queue runs fns one at a time in order on a fresh Coordinator.
func Queue[T any](handler CompletionHandler[T], fns ...WorkFunc[T]) *Coordinator[T] {
	c := New[T]()
	for _, fn := range fns {
		c.AddFunc(fn)
	}
	return c.Queue(handler)
}

// Pool runs fns concurrently, DefaultChunkSize at a time, on a fresh Coordinator.
func Pool[T any](handler CompletionHandler[T], fns ...WorkFunc[T]) *Coordinator[T] {
	c := New[T]()
	for _, fn := range fns {
		c.AddFunc(fn)
	}
	return c.Pool(handler)
}

// Run starts fns on a fresh Coordinator built from cfg, in cfg.Mode.
func Run[T any](cfg Config, handler CompletionHandler[T], fns ...WorkFunc[T]) *Coordinator[T] {
	c := NewWithConfig[T](cfg)
	for _, fn := range fns {
		c.AddFunc(fn)
	}
	return c.Run(handler)
}
