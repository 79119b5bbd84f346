package core

import "time"

// TaskExecutionRecord captures one completed Task of a Coordinator.
type TaskExecutionRecord struct {
	Name        string
	Index       int
	Coordinator string
	Mode        Mode
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Panicked    bool
}

// CoordinatorStats represents runtime observability state for a Coordinator.
type CoordinatorStats struct {
	ID            string
	Name          string
	Mode          Mode
	Total         int
	Completed     int
	Chunks        int
	Started       bool
	Finished      bool
	Faults        int
	LateCallbacks int64
	LastTaskName  string
	LastTaskAt    time.Time
}

// Pending returns the number of Tasks that have not reported a result.
func (s CoordinatorStats) Pending() int {
	if s.Completed >= s.Total {
		return 0
	}
	return s.Total - s.Completed
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}
