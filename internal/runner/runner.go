// Package runner is the top-level façade: it drives Load → Generate →
// Run end to end, the way the teacher's internal/runtime.Runtime
// sequences Configure/Run, but over this project's own discovery →
// generator → dispatcher → reporter pipeline instead of a JS module
// runtime.
package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rizqme/goderunner/internal/config"
	"github.com/rizqme/goderunner/internal/discovery"
	"github.com/rizqme/goderunner/internal/dispatcher"
	"github.com/rizqme/goderunner/internal/generator"
	"github.com/rizqme/goderunner/internal/reporter"
	"github.com/rizqme/goderunner/internal/spectree"
	"github.com/rizqme/goderunner/internal/workerproc"
)

// Options bundles every CLI/config-resolved input a run needs.
type Options struct {
	ProjectRoot string
	OutputDir   string

	Discovery discovery.Config
	Generator generator.Config

	Workers       int
	Retries       int
	MaxFailures   int
	GlobalTimeout time.Duration
	TimeoutMS     int64

	SnapshotDir     string
	UpdateSnapshots bool

	ListOnly bool
}

// Outcome is the façade's final disposition, mapped to an exit code by
// the caller per spec.md §7.
type Outcome struct {
	Result *dispatcher.Result
	Tree   *spectree.Tree
	Tests  []*spectree.Test
}

// Run executes one full pass: discover files, build the spec tree,
// generate the test list, and dispatch it to a worker pool, reporting
// through mux as it goes.
func Run(ctx context.Context, opts Options, mux *reporter.Multiplexer) (*Outcome, error) {
	found, err := discovery.Walk(opts.ProjectRoot, opts.Discovery)
	if err != nil {
		return nil, fmt.Errorf("runner: discover: %w", err)
	}

	vm, loader := workerproc.NewDiscoveryLoader(-1)
	defer vm.Dispose()

	workerproc.LoadFiles(vm, loader, found.Fixtures)
	workerproc.LoadFiles(vm, loader, found.Tests)

	tree := loader.Tree()

	tests, err := generator.Generate(tree, loader, opts.Generator)
	if err != nil {
		if err == generator.ErrForbidOnly {
			return &Outcome{Result: &dispatcher.Result{Outcome: "forbid-only"}, Tree: tree}, nil
		}
		return nil, fmt.Errorf("runner: generate: %w", err)
	}

	mux.OnBegin(reporter.RunConfig{
		Workers:     opts.Workers,
		OutputDir:   opts.OutputDir,
		ProjectRoot: opts.ProjectRoot,
	}, tree)

	if opts.ListOnly || len(tests) == 0 {
		mux.OnEnd()
		outcome := "no-tests"
		if opts.ListOnly {
			outcome = "passed"
		}
		return &Outcome{Result: &dispatcher.Result{Outcome: outcome}, Tree: tree, Tests: tests}, nil
	}

	groups := dispatcher.BuildGroups(tests, newGroupID)

	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("runner: locate self: %w", err)
	}

	d := dispatcher.New(dispatcher.Config{
		Workers:          opts.Workers,
		MaxFailures:      opts.MaxFailures,
		Retries:          opts.Retries,
		GlobalTimeout:    opts.GlobalTimeout,
		DefaultTimeoutMS: opts.TimeoutMS,
		ProjectRoot:      opts.ProjectRoot,
		OutputDir:        opts.OutputDir,
		SnapshotDir:      opts.SnapshotDir,
		UpdateSnapshots:  opts.UpdateSnapshots,
		WorkerBinary:     binary,
	}, mux)

	result, err := d.Run(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("runner: dispatch: %w", err)
	}

	return &Outcome{Result: result, Tree: tree, Tests: tests}, nil
}

// ExitCode maps a Result's Outcome to the process exit code spec.md §7
// specifies: 0 on a clean pass, 1 on failures, bad configuration,
// forbid-only, or no-tests, 130 on SIGINT (128 + SIGINT's signal number 2).
func ExitCode(result *dispatcher.Result) int {
	switch result.Outcome {
	case "passed":
		return 0
	case "sigint":
		return 130
	default:
		return 1
	}
}

var groupSeq int64

func newGroupID() string {
	groupSeq++
	return fmt.Sprintf("g%d", groupSeq)
}
