package core

import (
	"errors"
	"fmt"
)

var (
	// ErrQuit is the terminal cause of a Coordinator stopped by Quit before
	// all Tasks completed.
	ErrQuit = errors.New("coordinator: quit before all tasks completed")

	// ErrTimeout is the terminal cause of a Coordinator whose Config.Timeout
	// elapsed before all Tasks completed.
	ErrTimeout = errors.New("coordinator: timed out before all tasks completed")

	// ErrAddAfterStart is recorded when Add is called on a started Coordinator.
	ErrAddAfterStart = errors.New("coordinator: add after start")

	// ErrUnsupportedTask is recorded when Add receives a value that is not a
	// task, a work function, or a slice of them.
	ErrUnsupportedTask = errors.New("coordinator: unsupported task input")

	// ErrDuplicateCallback is recorded when a Task calls its Done more than once.
	ErrDuplicateCallback = errors.New("coordinator: completion callback invoked more than once")

	// ErrTaskRejected is recorded when the executor refuses a Task's job,
	// typically because its pool is shutting down.
	ErrTaskRejected = errors.New("coordinator: executor rejected task")

	// ErrHandlerPanic is recorded when the completion handler panics.
	ErrHandlerPanic = errors.New("coordinator: completion handler panicked")
)

// TaskPanicError describes a work function that panicked.
type TaskPanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("coordinator: task %s panicked: %v", e.Task, e.Value)
}

// taskFault attributes a sentinel fault to a named task.
func taskFault(err error, task string) error {
	return fmt.Errorf("%w (task %s)", err, task)
}
