// Package taskbatch runs batches of callback-style tasks to completion.
//
// A Coordinator holds an ordered list of tasks. Each task is a work function
// that receives a Done callback and must call it exactly once with its
// result. The Coordinator executes the list in one of two modes and calls a
// completion handler once, with every result, when the last task reports.
//
// # Modes
//
// Queue mode runs one task at a time in registration order; results come
// back in the same order.
//
// Pool mode fires tasks without waiting for each other, at most ChunkSize
// (default 30) at a time. A larger list is split into contiguous chunks that
// run one after another; within a chunk results arrive in callback order,
// while chunk k's results always precede chunk k+1's.
//
// # Quick Start
//
//	taskbatch.InitGlobalThreadPool(4)
//	defer taskbatch.ShutdownGlobalThreadPool()
//
//	c := taskbatch.New[int]()
//	for i := range 5 {
//		c.AddFunc(func(done taskbatch.Done[int]) {
//			done(i * i)
//		})
//	}
//	c.Queue(func(results []int) {
//		fmt.Println(results) // [0 1 4 9 16]
//	})
//
// # Termination
//
// Quit forces the terminal state before all tasks report; in-flight work is
// not interrupted. Config.Timeout does the same after a deadline. Wait and
// Done expose the terminal transition to callers that prefer blocking, and
// Err reports the terminal cause together with any recorded faults such as
// a task calling Done twice.
//
// # Executors
//
// Work functions are dispatched through a core.Executor. Without one they run
// inline; GoroutineThreadPool provides a fixed set of worker goroutines.
package taskbatch
