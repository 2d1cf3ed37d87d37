// Package main implements the activity-consumer binary. Without a subcommand
// it runs as the function handler for stream-triggered batches; the local
// subcommand drives the same handler from the embedded stream.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
