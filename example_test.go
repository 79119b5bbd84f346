package taskbatch_test

import (
	"fmt"
	"time"

	taskbatch "github.com/Swind/go-task-batch"
)

// ExampleNew demonstrates sequential execution with only one import.
func ExampleNew() {
	c := taskbatch.New[string]()
	for _, step := range []string{"fetch", "transform", "store"} {
		c.AddTask(taskbatch.Task[string]{
			Name: step,
			Work: func(done taskbatch.Done[string]) {
				time.AfterFunc(time.Millisecond, func() { done(step + " ok") })
			},
		})
	}

	finished := make(chan struct{})
	c.Queue(func(results []string) {
		for _, r := range results {
			fmt.Println(r)
		}
		close(finished)
	})
	<-finished

	// Output:
	// fetch ok
	// transform ok
	// store ok
}

// ExampleNewWithConfig demonstrates chunked fan-out.
func ExampleNewWithConfig() {
	c := taskbatch.NewWithConfig[int](taskbatch.Config{ChunkSize: 2})
	for i := range 5 {
		c.AddFunc(taskbatch.Blocking(func() int { return i * 10 }))
	}

	c.Pool(func(results []int) {
		fmt.Println(results)
	})
	fmt.Println("chunks:", c.Stats().Chunks)

	// Output:
	// [0 10 20 30 40]
	// chunks: 3
}
