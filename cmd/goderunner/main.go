// Command goderunner is the CLI entry point: discover, generate, and
// dispatch a test run, or (as `internal-worker`) act as a single worker
// subprocess re-exec'd by the dispatcher.
package main

import (
	"context"
	"os"

	"github.com/rizqme/goderunner/internal/cli"
)

// main deliberately does not install its own SIGINT handler:
// internal/dispatcher.Run owns the two-stage SIGINT drain (first
// SIGINT stops dispatching and lets in-flight tests finish, a second
// hard-kills every worker), reading the signal directly so it can
// distinguish the first from the second. Wiring a second
// signal.NotifyContext here would race that logic by cancelling ctx on
// the very first SIGINT. ctx is for programmatic cancellation only.
func main() {
	root := cli.NewRootCmd()
	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
