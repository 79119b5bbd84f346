package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling work function panics
// =============================================================================

// PanicHandler is called when a work function or a host Job panics.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the Job the task was running in
	// - owner: The coordinator id, or the pool id for bare host Jobs
	// - taskName: The diagnostic name of the task ("" for bare host Jobs)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, owner string, taskName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, owner string, taskName string, panicInfo any, stackTrace []byte) {
	if taskName != "" {
		fmt.Printf("[Coordinator %s] Task %s panic: %v\nStack trace:\n%s",
			owner, taskName, panicInfo, stackTrace)
	} else {
		fmt.Printf("[Pool %s] Panic: %v\nStack trace:\n%s",
			owner, panicInfo, stackTrace)
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Fault kinds passed to Metrics.RecordFault.
const (
	FaultDuplicateCallback = "duplicate_callback"
	FaultLateCallback      = "late_callback"
	FaultAddAfterStart     = "add_after_start"
	FaultUnsupportedTask   = "unsupported_task"
	FaultTimeout           = "timeout"
	FaultPanic             = "panic"
	FaultHandlerPanic      = "handler_panic"
	FaultRejected          = "rejected"
)

// Metrics defines the interface for collecting coordinator metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; they are called from completion
// callbacks.
type Metrics interface {
	// RecordTaskDuration records the time between dispatching a Task and its
	// completion callback.
	RecordTaskDuration(coordinator string, mode Mode, duration time.Duration)

	// RecordTaskPanic records that a work function panicked.
	RecordTaskPanic(coordinator string, panicInfo any)

	// RecordBatchFinished records a Coordinator reaching its terminal state.
	// aborted is true when the transition came from Quit or a timeout.
	RecordBatchFinished(coordinator string, mode Mode, tasks int, aborted bool, duration time.Duration)

	// RecordChunkStarted records a pool chunk of the given size being started.
	RecordChunkStarted(coordinator string, size int)

	// RecordFault records an invariant violation (see the Fault* constants).
	RecordFault(coordinator string, kind string)

	// RecordQueueDepth records the current host scheduler queue depth.
	RecordQueueDepth(owner string, depth int)

	// RecordTaskRejected records that a host Job was rejected (e.g., during shutdown).
	RecordTaskRejected(owner string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(coordinator string, mode Mode, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(coordinator string, panicInfo any)                       {}
func (m *NilMetrics) RecordBatchFinished(coordinator string, mode Mode, tasks int, aborted bool, duration time.Duration) {
}
func (m *NilMetrics) RecordChunkStarted(coordinator string, size int) {}
func (m *NilMetrics) RecordFault(coordinator string, kind string)     {}
func (m *NilMetrics) RecordQueueDepth(owner string, depth int)        {}
func (m *NilMetrics) RecordTaskRejected(owner string, reason string)  {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected host Jobs
// =============================================================================

// RejectedTaskHandler is called when the scheduler refuses a Job, which
// happens once it is shutting down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(owner string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected jobs.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected job.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(owner string, reason string) {
	fmt.Printf("[Pool %s] Job rejected: %s\n", owner, reason)
}

// =============================================================================
// TaskSchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// TaskSchedulerConfig holds configuration options for TaskScheduler.
// All handlers are optional; if not provided, default implementations will be used.
type TaskSchedulerConfig struct {
	// PanicHandler is called when a Job panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record queue metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a Job is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultTaskSchedulerConfig returns a config with default handlers.
func DefaultTaskSchedulerConfig() *TaskSchedulerConfig {
	return &TaskSchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}
