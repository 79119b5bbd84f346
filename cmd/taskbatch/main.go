// Command taskbatch runs synthetic batches through a Coordinator and reports
// ordering, timing and faults, optionally exposing Prometheus metrics.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
