package core

import (
	"context"
	"fmt"
	"strings"
)

// Done is the completion callback handed to a Task's work function.
// It must be called exactly once with the Task's result.
type Done[T any] func(result T)

// WorkFunc is the body of a Task. It may return before the work is complete
// as long as it eventually calls done.
type WorkFunc[T any] func(done Done[T])

// Task is one unit of asynchronous work plus a diagnostic name.
type Task[T any] struct {
	Work WorkFunc[T]
	Name string
}

// CompletionHandler receives the Result Collection when a Coordinator
// reaches its terminal state.
type CompletionHandler[T any] func(results []T)

// Blocking adapts a synchronous function into a WorkFunc.
func Blocking[T any](fn func() T) WorkFunc[T] {
	return func(done Done[T]) {
		done(fn())
	}
}

// NamedTask is shorthand for building a Task literal.
func NamedTask[T any](name string, work WorkFunc[T]) Task[T] {
	return Task[T]{Work: work, Name: name}
}

// =============================================================================
// Mode: Execution strategy of a Coordinator
// =============================================================================

type Mode int

const (
	// ModeQueue runs one Task at a time in registry order.
	ModeQueue Mode = iota

	// ModePool fires Tasks concurrently, at most ChunkSize at once.
	ModePool
)

func (m Mode) String() string {
	switch m {
	case ModeQueue:
		return "queue"
	case ModePool:
		return "pool"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts "queue" or "pool" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queue":
		return ModeQueue, nil
	case "pool":
		return ModePool, nil
	default:
		return ModeQueue, fmt.Errorf("unknown mode %q", s)
	}
}

// =============================================================================
// Job / Executor: the host runtime work is dispatched onto
// =============================================================================

// Job is a unit of host work posted to an Executor.
type Job func(ctx context.Context)

// Executor runs Jobs. Post must not block on the Job itself.
type Executor interface {
	Post(job Job)
}

// RejectingExecutor is an Executor that reports whether it accepted a Job.
// A Coordinator completes a rejected Task with the zero value and records
// an ErrTaskRejected fault.
type RejectingExecutor interface {
	Executor
	TryPost(job Job) bool
}

// InlineExecutor runs every Job immediately on the posting goroutine.
// It is the default when no Executor is configured; work functions that
// complete asynchronously still give real fan-out in pool mode.
type InlineExecutor struct{}

func (InlineExecutor) Post(job Job) {
	job(context.Background())
}

// ThreadPool is an Executor with a lifecycle and observable counters.
type ThreadPool interface {
	RejectingExecutor

	Start(ctx context.Context)
	Stop()

	ID() string
	IsRunning() bool

	WorkerCount() int
	QueuedTaskCount() int
	ActiveTaskCount() int
}

// =============================================================================
// Context Helper
// =============================================================================
type coordinatorKeyType struct{}

var coordinatorKey coordinatorKeyType

// CoordinatorID returns the id of the Coordinator that dispatched the job
// running with ctx, or "" outside a dispatched job.
func CoordinatorID(ctx context.Context) string {
	if v, ok := ctx.Value(coordinatorKey).(string); ok {
		return v
	}
	return ""
}
