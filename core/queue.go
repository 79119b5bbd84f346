package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// JobQueue is the host scheduler's ready queue.
type JobQueue interface {
	Push(job Job)
	Pop() (Job, bool)
	Len() int
	IsEmpty() bool
	Clear() // Clear all jobs from the queue
}

// =============================================================================
// FIFOJobQueue: slice-backed FIFO with periodic compaction
// =============================================================================

type FIFOJobQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func NewFIFOJobQueue() *FIFOJobQueue {
	return &FIFOJobQueue{
		jobs: make([]Job, 0, defaultQueueCap),
	}
}

func (q *FIFOJobQueue) Push(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *FIFOJobQueue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	// Drop the reference so the closure can be collected
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return job, true
}

func (q *FIFOJobQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]Job, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)
	compacted := make([]Job, n, newCap)
	copy(compacted, q.jobs)
	q.jobs = compacted
}

func (q *FIFOJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *FIFOJobQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *FIFOJobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = make([]Job, 0, defaultQueueCap)
}
