package core

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// TaskScheduler is the work source behind a thread pool: a FIFO ready
// queue, a wake-up signal for idle workers and live counters.
type TaskScheduler struct {
	owner       string
	queue       JobQueue
	signal      chan struct{}
	workerCount int

	metricQueued atomic.Int32 // Waiting in the ready queue
	metricActive atomic.Int32 // Executing in a worker

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	shuttingDown atomic.Bool
}

func NewTaskScheduler(owner string, workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(owner, workerCount, DefaultTaskSchedulerConfig())
}

func NewTaskSchedulerWithConfig(owner string, workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	s := &TaskScheduler{
		owner:       owner,
		queue:       NewFIFOJobQueue(),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
	}

	// Apply config
	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
	}

	// Use defaults if not provided
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}

	return s
}

// Post enqueues job and wakes one idle worker.
func (s *TaskScheduler) Post(job Job) {
	s.TryPost(job)
}

// TryPost is Post that reports false when the job was rejected because the
// scheduler is shutting down.
func (s *TaskScheduler) TryPost(job Job) bool {
	if s.shuttingDown.Load() {
		s.rejectedTaskHandler.HandleRejectedTask(s.owner, "shutting down")
		s.metrics.RecordTaskRejected(s.owner, "shutting down")
		return false
	}

	s.queue.Push(job)
	depth := s.metricQueued.Inc()
	s.metrics.RecordQueueDepth(s.owner, int(depth))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but the job is already queued
		// This is not an error, just an optimization hint
	}
	return true
}

// GetWork (Called by Worker)
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Job, bool) {
	for {
		if job, ok := s.queue.Pop(); ok {
			s.metricQueued.Dec()
			return job, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

func (s *TaskScheduler) Shutdown() {
	// 1. Stop accepting new jobs
	s.shuttingDown.Store(true)

	// 2. Release every queued closure
	s.queue.Clear()
	s.metricQueued.Store(0)
}

// ShutdownGraceful waits for all queued and active jobs to complete
// Returns error if timeout is exceeded before jobs complete
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	s.shuttingDown.Store(true)

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			s.queue.Clear()
			s.metricQueued.Store(0)
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return int(s.metricQueued.Load()) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(s.metricActive.Load()) }
func (s *TaskScheduler) IsShuttingDown() bool { return s.shuttingDown.Load() }

func (s *TaskScheduler) OnTaskStart() {
	s.metricActive.Inc()
}

func (s *TaskScheduler) OnTaskEnd() {
	s.metricActive.Dec()
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
