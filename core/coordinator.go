package core

import (
	"context"
	"fmt"
	"strings"
)

// Coordinator drives a list of Tasks to completion, either one at a time
// (ModeQueue) or concurrently in chunks of at most Config.ChunkSize
// (ModePool), and fires its completion handler exactly once.
//
// A Coordinator is single-use: Start takes effect once and the terminal
// state is absorbing. All methods are safe for concurrent use.
type Coordinator[T any] struct {
	e *engine
}

// NewCoordinator creates a Coordinator seeded with tasks. Zero Config
// fields take their defaults.
func NewCoordinator[T any](cfg Config, tasks ...Task[T]) *Coordinator[T] {
	c := &Coordinator[T]{e: newEngine(cfg, "")}
	for _, t := range tasks {
		c.AddTask(t)
	}
	return c
}

// ID returns the generated instance id used in diagnostics.
func (c *Coordinator[T]) ID() string { return c.e.id }

// Len returns the number of registered Tasks.
func (c *Coordinator[T]) Len() int { return c.e.size() }

// Add registers input and returns c for chaining. Accepted inputs:
//
//   - nil (no-op)
//   - Task[T] or *Task[T]
//   - WorkFunc[T], func(Done[T]) or func(func(T))
//   - a slice of any of the above, including []any mixtures
//
// Nil functions and Tasks without Work are skipped like nil.
// Bare functions get a generated unique name. A Task's name is trimmed;
// an empty name becomes "<index>:<function symbol>".
//
// Add after Start does not register anything; the attempt is recorded as
// an ErrAddAfterStart fault.
func (c *Coordinator[T]) Add(input any) *Coordinator[T] {
	switch v := input.(type) {
	case nil:
	case Task[T]:
		c.AddTask(v)
	case *Task[T]:
		if v != nil {
			c.AddTask(*v)
		}
	case WorkFunc[T]:
		c.AddFunc(v)
	case func(Done[T]):
		c.AddFunc(v)
	case func(func(T)):
		if v != nil {
			c.AddFunc(func(done Done[T]) { v(done) })
		}
	case []Task[T]:
		for _, t := range v {
			c.AddTask(t)
		}
	case []*Task[T]:
		for _, t := range v {
			c.Add(t)
		}
	case []WorkFunc[T]:
		for _, fn := range v {
			c.AddFunc(fn)
		}
	case []func(Done[T]):
		for _, fn := range v {
			c.AddFunc(fn)
		}
	case []any:
		for _, item := range v {
			c.Add(item)
		}
	default:
		c.e.fault(fmt.Errorf("%w: %T", ErrUnsupportedTask, input), FaultUnsupportedTask)
	}
	return c
}

// AddTask registers a named Task.
func (c *Coordinator[T]) AddTask(t Task[T]) *Coordinator[T] {
	if t.Work == nil {
		return c
	}
	name := strings.TrimSpace(t.Name)
	c.e.add(adapt(t.Work), func(index int) string {
		if name != "" {
			return name
		}
		return fmt.Sprintf("%d:%s", index, funcIdentity(t.Work))
	})
	return c
}

// AddFunc registers a bare work function under a generated unique name.
func (c *Coordinator[T]) AddFunc(fn WorkFunc[T]) *Coordinator[T] {
	if fn == nil {
		return c
	}
	name := c.e.cfg.NewID()
	c.e.add(adapt(fn), func(int) string { return name })
	return c
}

// Start begins execution in mode. handler may be nil.
//
// Only the first Start dispatches. Later calls replace the pending handler
// (if non-nil) and record mode as RequestedMode, without re-dispatching.
// Starting an empty Coordinator finishes it synchronously with an empty
// Result Collection.
func (c *Coordinator[T]) Start(handler CompletionHandler[T], mode Mode) *Coordinator[T] {
	c.e.start(wrapHandler(handler), mode)
	return c
}

// Run starts in the Config's default mode.
func (c *Coordinator[T]) Run(handler CompletionHandler[T]) *Coordinator[T] {
	return c.Start(handler, c.e.cfg.Mode)
}

// Queue starts in ModeQueue.
func (c *Coordinator[T]) Queue(handler CompletionHandler[T]) *Coordinator[T] {
	return c.Start(handler, ModeQueue)
}

// Pool starts in ModePool.
func (c *Coordinator[T]) Pool(handler CompletionHandler[T]) *Coordinator[T] {
	return c.Start(handler, ModePool)
}

// Quit forces the terminal state now, replacing the handler first if one
// is given. In-flight Tasks are abandoned, not interrupted; their later
// callbacks are counted and dropped. Quit after completion is a no-op.
func (c *Coordinator[T]) Quit(handler CompletionHandler[T]) *Coordinator[T] {
	c.e.quit(wrapHandler(handler))
	return c
}

// Wait blocks until the Coordinator is terminal or ctx is done.
func (c *Coordinator[T]) Wait(ctx context.Context) ([]T, error) {
	results, err := c.e.wait(ctx)
	if results == nil {
		return nil, err
	}
	return convert[T](results), err
}

// Done returns a channel closed after the terminal transition, once the
// completion handler has returned.
func (c *Coordinator[T]) Done() <-chan struct{} { return c.e.done }

// Err returns the terminal cause (ErrQuit, ErrTimeout, or nil for natural
// completion) joined with every recorded fault.
func (c *Coordinator[T]) Err() error { return c.e.err() }

// Faults returns the recorded invariant violations.
func (c *Coordinator[T]) Faults() []error { return c.e.faultList() }

// Results returns a snapshot of the Result Collection gathered so far.
func (c *Coordinator[T]) Results() []T { return convert[T](c.e.snapshot()) }

// Mode returns the mode the Coordinator is running (or will run) in.
func (c *Coordinator[T]) Mode() Mode {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.e.mode
}

// RequestedMode returns the mode passed to the latest Start call.
func (c *Coordinator[T]) RequestedMode() Mode {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.e.requestedMode
}

func (c *Coordinator[T]) IsStarted() bool  { return c.e.isStarted() }
func (c *Coordinator[T]) IsFinished() bool { return c.e.isFinished() }

// Stats returns current observability data for this Coordinator.
func (c *Coordinator[T]) Stats() CoordinatorStats { return c.e.stats() }

// RecentTasks returns completed task records in newest-first order.
func (c *Coordinator[T]) RecentTasks(limit int) []TaskExecutionRecord {
	return c.e.history.Recent(limit)
}

func adapt[T any](work WorkFunc[T]) func(done func(any)) {
	return func(done func(any)) {
		work(func(result T) { done(result) })
	}
}

func wrapHandler[T any](handler CompletionHandler[T]) func([]any) {
	if handler == nil {
		return nil
	}
	return func(results []any) {
		handler(convert[T](results))
	}
}

func convert[T any](in []any) []T {
	out := make([]T, len(in))
	for i, v := range in {
		if r, ok := v.(T); ok {
			out[i] = r
		}
	}
	return out
}
