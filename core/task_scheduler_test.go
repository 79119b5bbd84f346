package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingMetrics struct {
	NilMetrics

	mu          sync.Mutex
	depths      []int
	rejected    []string
	faults      map[string]int
	panics      int
	batches     int
	aborted     int
	chunkSizes  []int
	taskSamples int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{faults: make(map[string]int)}
}

func (m *recordingMetrics) RecordQueueDepth(owner string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, depth)
}

func (m *recordingMetrics) RecordTaskRejected(owner string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
}

func (m *recordingMetrics) RecordFault(coordinator string, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[kind]++
}

func (m *recordingMetrics) RecordTaskPanic(coordinator string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordBatchFinished(coordinator string, mode Mode, tasks int, aborted bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if aborted {
		m.aborted++
	}
}

func (m *recordingMetrics) RecordChunkStarted(coordinator string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkSizes = append(m.chunkSizes, size)
}

func (m *recordingMetrics) RecordTaskDuration(coordinator string, mode Mode, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskSamples++
}

func (m *recordingMetrics) fault(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faults[kind]
}

type countingRejectHandler struct {
	mu    sync.Mutex
	count int
}

func (h *countingRejectHandler) HandleRejectedTask(owner string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
}

// TestTaskScheduler_ExecutionOrder tests FIFO execution order
// Main test items:
// 1. Jobs execute in insertion order
// 2. GetWork returns immediately while jobs are queued
func TestTaskScheduler_ExecutionOrder(t *testing.T) {
	s := NewTaskScheduler("sched", 1)

	results := make(chan string, 10)
	makeJob := func(name string) Job {
		return func(ctx context.Context) {
			results <- name
		}
	}

	s.Post(makeJob("first"))
	s.Post(makeJob("second"))
	s.Post(makeJob("third"))

	expected := []string{"first", "second", "third"}
	stopCh := make(chan struct{})

	for i, exp := range expected {
		job, ok := s.GetWork(stopCh)
		if !ok {
			t.Fatalf("Step %d: expected job but got none", i)
		}
		job(context.Background())

		got := <-results
		if got != exp {
			t.Errorf("Step %d: Expected %s, got %s", i, exp, got)
		}
	}
}

// TestTaskScheduler_Metrics tests scheduler counter reporting
// Main test items:
// 1. WorkerCount returns configured worker count
// 2. QueuedTaskCount tracks Post and GetWork
// 3. ActiveTaskCount tracks OnTaskStart and OnTaskEnd
// 4. Queue depth is reported to Metrics on every Post
func TestTaskScheduler_Metrics(t *testing.T) {
	metrics := newRecordingMetrics()
	s := NewTaskSchedulerWithConfig("sched", 2, &TaskSchedulerConfig{Metrics: metrics})

	if s.WorkerCount() != 2 {
		t.Errorf("Expected WorkerCount 2, got %d", s.WorkerCount())
	}

	noop := func(ctx context.Context) {}
	s.Post(noop)
	s.Post(noop)

	if s.QueuedTaskCount() != 2 {
		t.Errorf("Expected QueuedTaskCount 2, got %d", s.QueuedTaskCount())
	}
	if len(metrics.depths) != 2 || metrics.depths[1] != 2 {
		t.Errorf("Expected depths [1 2], got %v", metrics.depths)
	}

	stopCh := make(chan struct{})
	if _, ok := s.GetWork(stopCh); !ok {
		t.Fatal("Expected job")
	}
	s.OnTaskStart()

	if s.QueuedTaskCount() != 1 {
		t.Errorf("Expected QueuedTaskCount 1, got %d", s.QueuedTaskCount())
	}
	if s.ActiveTaskCount() != 1 {
		t.Errorf("Expected ActiveTaskCount 1, got %d", s.ActiveTaskCount())
	}

	s.OnTaskEnd()
	if s.ActiveTaskCount() != 0 {
		t.Errorf("Expected ActiveTaskCount 0, got %d", s.ActiveTaskCount())
	}
}

// TestTaskScheduler_GetWork_Stop verifies GetWork unblocks on stop
// Given: An empty scheduler and a worker waiting in GetWork
// When: The stop channel is closed
// Then: GetWork returns false
func TestTaskScheduler_GetWork_Stop(t *testing.T) {
	// Arrange
	s := NewTaskScheduler("sched", 1)
	stopCh := make(chan struct{})
	result := make(chan bool, 1)

	// Act
	go func() {
		_, ok := s.GetWork(stopCh)
		result <- ok
	}()
	close(stopCh)

	// Assert
	select {
	case ok := <-result:
		if ok {
			t.Error("GetWork after stop = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("GetWork did not return after stop")
	}
}

// TestTaskScheduler_Shutdown_RejectsNewJobs verifies shutdown semantics
// Given: A scheduler with a queued job
// When: Shutdown is called and another job is posted
// Then: The queue is cleared and the new job is rejected through handler and metrics
func TestTaskScheduler_Shutdown_RejectsNewJobs(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	handler := &countingRejectHandler{}
	s := NewTaskSchedulerWithConfig("sched", 1, &TaskSchedulerConfig{
		Metrics:             metrics,
		RejectedTaskHandler: handler,
	})
	s.Post(func(ctx context.Context) {})

	// Act
	s.Shutdown()
	s.Post(func(ctx context.Context) {})

	// Assert
	if !s.IsShuttingDown() {
		t.Error("IsShuttingDown() = false, want true")
	}
	if s.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount() = %d, want 0", s.QueuedTaskCount())
	}
	if handler.count != 1 {
		t.Errorf("rejected handler calls = %d, want 1", handler.count)
	}
	if len(metrics.rejected) != 1 {
		t.Errorf("rejected metrics = %v, want one entry", metrics.rejected)
	}
}

// TestTaskScheduler_ShutdownGraceful verifies graceful shutdown waits for drained queues
// Given: A scheduler whose queued job is consumed by a worker
// When: ShutdownGraceful is called
// Then: It returns nil once queued and active counters drop to zero
func TestTaskScheduler_ShutdownGraceful(t *testing.T) {
	// Arrange
	s := NewTaskScheduler("sched", 1)
	s.Post(func(ctx context.Context) { time.Sleep(20 * time.Millisecond) })

	stopCh := make(chan struct{})
	defer close(stopCh)
	go func() {
		job, ok := s.GetWork(stopCh)
		if !ok {
			return
		}
		s.OnTaskStart()
		job(context.Background())
		s.OnTaskEnd()
	}()

	// Act
	err := s.ShutdownGraceful(time.Second)

	// Assert
	if err != nil {
		t.Fatalf("ShutdownGraceful() = %v, want nil", err)
	}
}

// TestTaskScheduler_ShutdownGraceful_Timeout verifies forced clearing on timeout
func TestTaskScheduler_ShutdownGraceful_Timeout(t *testing.T) {
	s := NewTaskScheduler("sched", 1)
	s.Post(func(ctx context.Context) {})

	err := s.ShutdownGraceful(60 * time.Millisecond)

	if err == nil {
		t.Fatal("ShutdownGraceful() = nil, want timeout error")
	}
	if s.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount() after forced clear = %d, want 0", s.QueuedTaskCount())
	}
}
