package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/atomic"
)

// =============================================================================
// Queue mode: one Task in flight, advanced by completion callbacks
// =============================================================================

// driveQueue dispatches the Task whose index equals the current result
// count. Every completion calls it again. While one call owns the loop,
// re-entrant calls return at once and the owner moves on to the next
// index, so tasks that complete synchronously do not deepen the stack.
func (e *engine) driveQueue() {
	e.mu.Lock()
	if e.driving {
		e.mu.Unlock()
		return
	}
	e.driving = true
	for {
		index := len(e.results)
		if e.finished || index >= len(e.entries) || e.nextIndex > index {
			e.driving = false
			e.mu.Unlock()
			return
		}
		ent := e.entries[index]
		e.nextIndex = index + 1
		e.mu.Unlock()

		e.dispatch(index, ent)

		e.mu.Lock()
	}
}

// =============================================================================
// Pool mode: bounded fan-out
// =============================================================================

func (e *engine) drivePool() {
	e.mu.Lock()
	entries := e.entries
	e.mu.Unlock()

	if len(entries) > e.cfg.ChunkSize {
		e.runChunks(entries)
		return
	}

	e.cfg.Metrics.RecordChunkStarted(e.cfg.Name, len(entries))
	e.cfg.Logger.Debug("pool fan-out", e.fields("pool", F("tasks", len(entries)))...)
	for i, ent := range entries {
		if e.isFinished() {
			return
		}
		e.dispatch(i, ent)
	}
}

// runChunks splits entries into contiguous chunks of ChunkSize, runs each
// chunk as a pool-mode child, and sequences the children with a queue-mode
// engine. The sequencer's results (one result list per chunk) are flattened
// in chunk order into e's Result Collection.
func (e *engine) runChunks(entries []entry) {
	size := e.cfg.ChunkSize
	seq := newEngine(e.cfg.child(), e.id)
	seq.nested = true
	seq.sequencing = true
	seq.onFault = e.adoptFault
	children := make([]*engine, 0, (len(entries)+size-1)/size)

	for lo := 0; lo < len(entries); lo += size {
		hi := min(lo+size, len(entries))

		child := newEngine(e.cfg.child(), e.id)
		child.nested = true
		child.entries = append([]entry(nil), entries[lo:hi]...)
		child.history = e.history
		child.onProgress = e.noteProgress
		child.onFault = e.adoptFault
		child.onLate = e.noteLate
		children = append(children, child)

		k := len(seq.entries)
		seq.entries = append(seq.entries, entry{
			name: fmt.Sprintf("chunk-%d[%d:%d]", k, lo, hi),
			work: func(done func(any)) {
				child.start(func(results []any) { done(results) }, ModePool)
			},
		})
	}

	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.sequencer = seq
	e.children = children
	e.chunks = len(seq.entries)
	e.mu.Unlock()

	e.cfg.Logger.Info("pool partitioned into chunks", e.fields("chunk",
		F("tasks", len(entries)),
		F("chunks", len(seq.entries)),
		F("chunk_size", size),
		F("sequencer", seq.id),
	)...)

	seq.start(func(chunkResults []any) {
		flat := flattenChunks(chunkResults)
		e.mu.Lock()
		if !e.finished {
			e.results = flat
		}
		e.mu.Unlock()
		e.finish(nil)
	}, ModeQueue)
}

// =============================================================================
// Dispatch and completion
// =============================================================================

func (e *engine) dispatch(index int, ent entry) {
	e.cfg.Logger.Debug("dispatch task", e.fields("dispatch", F("task", ent.name), F("index", index))...)
	job := func(ctx context.Context) {
		e.invoke(context.WithValue(ctx, coordinatorKey, e.id), index, ent)
	}
	if ex, ok := e.cfg.Executor.(RejectingExecutor); ok {
		if !ex.TryPost(job) {
			e.reject(index, ent)
		}
		return
	}
	e.cfg.Executor.Post(job)
}

// reject completes a Task its executor refused with the zero value so the
// batch keeps moving, and records the refusal as a fault.
func (e *engine) reject(index int, ent entry) {
	e.fault(taskFault(ErrTaskRejected, ent.name), FaultRejected)
	e.complete(e.record(index, ent, time.Now(), false), nil)
}

// invoke runs one work function with a guarded completion callback: only
// the first call to done counts, later calls are recorded as faults.
func (e *engine) invoke(ctx context.Context, index int, ent entry) {
	startedAt := time.Now()
	called := atomic.NewBool(false)

	done := func(result any) {
		if !called.CompareAndSwap(false, true) {
			e.fault(taskFault(ErrDuplicateCallback, ent.name), FaultDuplicateCallback)
			return
		}
		e.complete(e.record(index, ent, startedAt, false), result)
	}

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			e.cfg.PanicHandler.HandlePanic(ctx, e.id, ent.name, r, stack)
			e.cfg.Metrics.RecordTaskPanic(e.cfg.Name, r)
			e.fault(&TaskPanicError{Task: ent.name, Value: r, Stack: stack}, FaultPanic)

			if called.CompareAndSwap(false, true) {
				e.complete(e.record(index, ent, startedAt, true), nil)
			}
		}
	}()

	ent.work(done)
}

func (e *engine) record(index int, ent entry, startedAt time.Time, panicked bool) TaskExecutionRecord {
	finishedAt := time.Now()
	return TaskExecutionRecord{
		Name:        ent.name,
		Index:       index,
		Coordinator: e.id,
		Mode:        e.mode,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Duration:    finishedAt.Sub(startedAt),
		Panicked:    panicked,
	}
}

// complete appends one result and checks the terminal condition. The
// append-and-compare runs under mu so parallel completions cannot both
// miss, or both claim, the last slot.
func (e *engine) complete(rec TaskExecutionRecord, result any) {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		e.noteLate(rec.Name)
		return
	}
	e.results = append(e.results, result)
	full := len(e.results) >= len(e.entries)
	queue := e.mode == ModeQueue
	e.mu.Unlock()

	e.history.Add(rec)
	if !e.sequencing {
		e.cfg.Metrics.RecordTaskDuration(e.cfg.Name, rec.Mode, rec.Duration)
	}
	e.noteProgress()

	if full {
		e.finish(nil)
		return
	}
	if queue {
		e.driveQueue()
	}
}
