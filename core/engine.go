package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// entry is a normalized registry slot. Results travel as any so that a
// chunk sequencer (whose results are per-chunk result lists) is the same
// engine type as the Coordinators it sequences.
type entry struct {
	name string
	work func(done func(any))
}

// engine is the untyped state machine behind Coordinator.
//
// State transitions are one-way: started and finished each flip once.
// mu guards the registry, the Result Collection and the flags; user code
// (work functions, completion handlers) is never called with mu held.
type engine struct {
	id     string
	parent string
	cfg    Config

	mu            sync.Mutex
	entries       []entry
	results       []any
	final         []any
	mode          Mode
	requestedMode Mode
	started       bool
	finished      bool
	handler       func([]any)
	cause         error
	faults        []error
	startedAt     time.Time
	timer         *time.Timer
	sequencer     *engine
	children      []*engine
	chunks        int

	// queue driver: nextIndex is the next registry slot to dispatch and
	// driving is set while a driveQueue call owns the dispatch loop.
	nextIndex int
	driving   bool

	// nested engines are chunk children or sequencers of a pool run; they
	// log at debug level and do not report batch metrics of their own.
	nested     bool
	sequencing bool

	progress      atomic.Int64
	lateCallbacks atomic.Int64
	onProgress    func()
	onFault       func(error)
	onLate        func(task string)

	done    chan struct{}
	history *executionHistory
}

func newEngine(cfg Config, parent string) *engine {
	cfg = cfg.WithDefaults()
	return &engine{
		id:            cfg.NewID(),
		parent:        parent,
		cfg:           cfg,
		mode:          cfg.Mode,
		requestedMode: cfg.Mode,
		done:          make(chan struct{}),
		history:       newExecutionHistory(cfg.HistoryCapacity),
	}
}

func (e *engine) fields(category string, extra ...Field) []Field {
	fs := make([]Field, 0, 3+len(extra))
	fs = append(fs, F("coordinator", e.id), F("category", category))
	if e.parent != "" {
		fs = append(fs, F("parent", e.parent))
	}
	return append(fs, extra...)
}

// add appends work to the registry. nameFor receives the insertion index.
// Adding to a started engine is rejected and recorded as a fault.
func (e *engine) add(work func(done func(any)), nameFor func(index int) string) bool {
	e.mu.Lock()
	if e.started || e.finished {
		name := nameFor(len(e.entries))
		e.mu.Unlock()
		e.fault(taskFault(ErrAddAfterStart, name), FaultAddAfterStart)
		return false
	}
	index := len(e.entries)
	name := nameFor(index)
	e.entries = append(e.entries, entry{name: name, work: work})
	e.mu.Unlock()

	e.cfg.Logger.Debug("task added", e.fields("registry", F("task", name), F("index", index))...)
	return true
}

func (e *engine) lifecycleLog(msg string, fields ...Field) {
	if e.nested {
		e.cfg.Logger.Debug(msg, fields...)
		return
	}
	e.cfg.Logger.Info(msg, fields...)
}

func (e *engine) fault(err error, kind string) {
	e.mu.Lock()
	e.faults = append(e.faults, err)
	e.mu.Unlock()

	e.cfg.Metrics.RecordFault(e.cfg.Name, kind)
	e.cfg.Logger.Warn("coordinator fault", e.fields("fault", F("kind", kind), F("error", err.Error()))...)
	if e.onFault != nil {
		e.onFault(err)
	}
}

// adoptFault records a fault raised by a nested engine.
func (e *engine) adoptFault(err error) {
	e.mu.Lock()
	e.faults = append(e.faults, err)
	e.mu.Unlock()
	if e.onFault != nil {
		e.onFault(err)
	}
}

// start is the single entry point into the running state. A second call
// only records the handler and mode overrides.
func (e *engine) start(handler func([]any), mode Mode) {
	e.mu.Lock()
	if e.started || e.finished {
		if handler != nil && !e.finished {
			e.handler = handler
		}
		e.requestedMode = mode
		e.started = true
		e.mu.Unlock()
		e.cfg.Logger.Debug("start ignored, coordinator already started", e.fields("dispatch", F("mode", mode.String()))...)
		return
	}
	if mode != ModePool {
		mode = ModeQueue
	}
	e.started = true
	e.mode = mode
	e.requestedMode = mode
	if handler != nil {
		e.handler = handler
	}
	e.startedAt = time.Now()
	n := len(e.entries)
	if n > 0 && e.cfg.Timeout > 0 {
		e.timer = time.AfterFunc(e.cfg.Timeout, e.expire)
	}
	e.mu.Unlock()

	e.lifecycleLog("coordinator started", e.fields("dispatch", F("mode", mode.String()), F("tasks", n))...)

	if n == 0 {
		e.finish(nil)
		return
	}

	switch mode {
	case ModePool:
		e.drivePool()
	default:
		e.driveQueue()
	}
}

func (e *engine) expire() {
	if e.isFinished() {
		return
	}
	e.cfg.Metrics.RecordFault(e.cfg.Name, FaultTimeout)
	e.cfg.Logger.Warn("coordinator timed out", e.fields("finish", F("timeout", e.cfg.Timeout.String()))...)
	e.finish(ErrTimeout)
}

func (e *engine) quit(handler func([]any)) {
	if handler != nil {
		e.mu.Lock()
		if !e.finished {
			e.handler = handler
		}
		e.mu.Unlock()
	}
	e.finish(ErrQuit)
}

// finish is the single terminal transition. Only the first call has any
// effect; it fires the completion handler with a copy of the results.
func (e *engine) finish(cause error) {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	seq := e.sequencer
	e.mu.Unlock()

	var partial []any
	if cause != nil && seq != nil {
		partial = flattenChunks(seq.snapshot())
	}

	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.finished = true
	e.cause = cause
	if e.timer != nil {
		e.timer.Stop()
	}
	seq, children := e.sequencer, e.children
	results := e.results
	if len(results) == 0 && len(partial) > 0 {
		results = partial
	}
	final := make([]any, len(results))
	copy(final, results)
	e.final = final
	handler := e.handler
	mode := e.mode
	total := len(e.entries)
	var elapsed time.Duration
	if !e.startedAt.IsZero() {
		elapsed = time.Since(e.startedAt)
	}
	e.mu.Unlock()

	if cause != nil {
		if seq != nil {
			seq.abandon()
		}
		for _, child := range children {
			child.abandon()
		}
	}

	aborted := cause != nil
	if !e.nested {
		e.cfg.Metrics.RecordBatchFinished(e.cfg.Name, mode, total, aborted, elapsed)
	}
	e.lifecycleLog("coordinator finished", e.fields("finish",
		F("results", len(final)),
		F("tasks", total),
		F("aborted", aborted),
		F("elapsed", elapsed.String()),
	)...)

	// Wait and Done observe the terminal state only after the handler ran.
	defer close(e.done)
	if handler != nil {
		e.runHandler(handler, final)
	}
}

// runHandler recovers a panicking completion handler and records it as a
// fault of the Coordinator, not of any task.
func (e *engine) runHandler(handler func([]any), results []any) {
	defer func() {
		if r := recover(); r != nil {
			ctx := context.WithValue(context.Background(), coordinatorKey, e.id)
			e.cfg.PanicHandler.HandlePanic(ctx, e.id, "", r, debug.Stack())
			e.fault(fmt.Errorf("%w: %v", ErrHandlerPanic, r), FaultHandlerPanic)
		}
	}()
	handler(results)
}

// abandon makes a nested engine terminal without firing its handler. Its
// in-flight tasks then report as late callbacks.
func (e *engine) abandon() {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.finished = true
	e.cause = ErrQuit
	e.handler = nil
	if e.timer != nil {
		e.timer.Stop()
	}
	e.final = append([]any{}, e.results...)
	e.mu.Unlock()

	e.cfg.Logger.Debug("nested coordinator abandoned", e.fields("finish")...)
	close(e.done)
}

// noteLate counts a completion that arrived after the terminal state.
// Nested engines forward it to the Coordinator that owns them.
func (e *engine) noteLate(task string) {
	e.lateCallbacks.Inc()
	if e.onLate != nil {
		e.onLate(task)
		return
	}
	e.cfg.Metrics.RecordFault(e.cfg.Name, FaultLateCallback)
	e.cfg.Logger.Debug("late completion ignored", e.fields("finish", F("task", task))...)
}

// wait blocks until the terminal transition, including its handler, is over.
func (e *engine) wait(ctx context.Context) ([]any, error) {
	select {
	case <-e.done:
		e.mu.Lock()
		final := e.final
		e.mu.Unlock()
		return final, e.err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *engine) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cause == nil && len(e.faults) == 0 {
		return nil
	}
	errs := make([]error, 0, 1+len(e.faults))
	errs = append(errs, e.cause)
	errs = append(errs, e.faults...)
	return errors.Join(errs...)
}

func (e *engine) faultList() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.faults))
	copy(out, e.faults)
	return out
}

func (e *engine) snapshot() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]any, len(e.results))
	copy(out, e.results)
	return out
}

func (e *engine) isFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

func (e *engine) isStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func (e *engine) size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *engine) stats() CoordinatorStats {
	e.mu.Lock()
	stats := CoordinatorStats{
		ID:       e.id,
		Name:     e.cfg.Name,
		Mode:     e.mode,
		Total:    len(e.entries),
		Chunks:   e.chunks,
		Started:  e.started,
		Finished: e.finished,
		Faults:   len(e.faults),
	}
	e.mu.Unlock()

	stats.Completed = int(e.progress.Load())
	stats.LateCallbacks = e.lateCallbacks.Load()
	if last, ok := e.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

func (e *engine) noteProgress() {
	e.progress.Inc()
	if e.onProgress != nil {
		e.onProgress()
	}
}

func flattenChunks(chunks []any) []any {
	var flat []any
	for _, c := range chunks {
		if part, ok := c.([]any); ok {
			flat = append(flat, part...)
		}
	}
	return flat
}
