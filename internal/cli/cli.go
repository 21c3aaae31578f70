// Package cli wires spec.md §6's CLI surface onto internal/config and
// internal/runner, the way the teacher's pkg/config.PackageJSON feeds a
// cobra command in the retrieval pack's other CLI example
// (andyballingall-json-schema-manager's cmd/jsm + internal/app).
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rizqme/goderunner/internal/clog"
	"github.com/rizqme/goderunner/internal/config"
	"github.com/rizqme/goderunner/internal/discovery"
	"github.com/rizqme/goderunner/internal/generator"
	"github.com/rizqme/goderunner/internal/reporter"
	"github.com/rizqme/goderunner/internal/runner"
	"github.com/rizqme/goderunner/internal/workerproc"
)

// Version is set at build time via -ldflags, mirroring the teacher's own
// cmd package.
var Version = "dev"

type flags struct {
	forbidOnly      bool
	grep            string
	globalTimeout   int64
	workers         int
	listOnly        bool
	maxFailures     int
	maxFailuresOne  bool
	output          string
	quiet           bool
	repeatEach      int
	reporters       []string
	retries         int
	shard           string
	snapshotDir     string
	testMatch       []string
	testIgnore      []string
	fixtureMatch    []string
	fixtureIgnore   []string
	timeout         int64
	updateSnapshots bool
	watch           bool
}

// NewRootCmd builds the goderunner root command: running it with no
// subcommand discovers, generates, and dispatches a test run per
// spec.md §4; `internal-worker` is a hidden subcommand only ever invoked
// by the dispatcher re-executing its own binary (see
// internal/dispatcher.spawnWorker).
func NewRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "goderunner [path...]",
		Short:         "Parallel test runner",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(cmd.Context(), f, args)
		},
	}

	root.PersistentFlags().BoolVar(&f.forbidOnly, "forbid-only", false, "abort with exit 1 if any focus mark exists")
	root.PersistentFlags().StringVarP(&f.grep, "grep", "g", "", "filter by spec full title; /…/flags is a regex")
	root.PersistentFlags().Int64Var(&f.globalTimeout, "global-timeout", 0, "abort the whole run after this many milliseconds")
	root.PersistentFlags().IntVarP(&f.workers, "workers", "j", 0, "worker pool size (0 = max(1, NumCPU/2))")
	root.PersistentFlags().BoolVar(&f.listOnly, "list", false, "generate the plan and dump it; do not run")
	root.PersistentFlags().IntVar(&f.maxFailures, "max-failures", 0, "stop after N failures (0 = unlimited)")
	root.PersistentFlags().BoolVarP(&f.maxFailuresOne, "max-failures-one", "x", false, "shorthand for --max-failures 1")
	root.PersistentFlags().StringVar(&f.output, "output", "test-results", "per-test artifact root")
	root.PersistentFlags().BoolVar(&f.quiet, "quiet", false, "suppress worker stdio capture to stdout")
	root.PersistentFlags().IntVar(&f.repeatEach, "repeat-each", 0, "multiplicity per spec")
	root.PersistentFlags().StringSliceVar(&f.reporters, "reporter", nil, "comma-separated reporter names (dot,line,list,json,junit,live,service), each optionally suffixed =target")
	root.PersistentFlags().IntVar(&f.retries, "retries", 0, "max retry count on failure")
	root.PersistentFlags().StringVar(&f.shard, "shard", "", "1-based shard selector c/t")
	root.PersistentFlags().StringVar(&f.snapshotDir, "snapshot-dir", "", "snapshot root relative to test dir")
	root.PersistentFlags().StringSliceVar(&f.testMatch, "test-match", nil, "test file glob (repeatable)")
	root.PersistentFlags().StringSliceVar(&f.testIgnore, "test-ignore", nil, "test file ignore glob (repeatable)")
	root.PersistentFlags().StringSliceVar(&f.fixtureMatch, "fixture-match", nil, "fixture file glob (repeatable)")
	root.PersistentFlags().StringSliceVar(&f.fixtureIgnore, "fixture-ignore", nil, "fixture file ignore glob (repeatable)")
	root.PersistentFlags().Int64Var(&f.timeout, "timeout", 0, "per-test default timeout in milliseconds")
	root.PersistentFlags().BoolVarP(&f.updateSnapshots, "update-snapshots", "u", false, "rewrite snapshots on mismatch")
	root.PersistentFlags().BoolVar(&f.watch, "watch", false, "re-run the whole suite when a file under the project root changes")

	root.AddCommand(newWorkerCmd())

	return root
}

// runMain resolves config.Load/Merge, translates it into runner.Options,
// and executes one run (or a --watch loop of runs) against mux.
func runMain(ctx context.Context, f flags, args []string) error {
	cliFlags := f.toTestRunner()

	projectRoot := config.FindProjectRoot(".")
	pkg, err := config.Load(projectRoot)
	if err != nil {
		return fmt.Errorf("goderunner: %w", err)
	}

	merged, err := pkg.Merge(cliFlags)
	if err != nil {
		return fmt.Errorf("goderunner: %w", err)
	}

	if err := config.Validate(merged); err != nil {
		return fmt.Errorf("goderunner: %w", err)
	}

	clog.SetQuiet(merged.Quiet)

	mux, err := buildMultiplexer(merged.Reporters, merged.Output, merged.Quiet)
	if err != nil {
		return fmt.Errorf("goderunner: %w", err)
	}

	opts, err := toRunnerOptions(merged, projectRoot, f.listOnly, args)
	if err != nil {
		return fmt.Errorf("goderunner: %w", err)
	}

	if !f.watch {
		return execOnce(ctx, opts, mux)
	}

	return watchLoop(ctx, opts, mux, projectRoot)
}

func execOnce(ctx context.Context, opts runner.Options, mux *reporter.Multiplexer) error {
	outcome, err := runner.Run(ctx, opts, mux)
	if err != nil {
		return err
	}
	if opts.ListOnly {
		plan := make([]map[string]interface{}, 0, len(outcome.Tests))
		for _, t := range outcome.Tests {
			plan = append(plan, map[string]interface{}{
				"id": t.ID, "file": t.File, "title": t.FullTitle,
				"variant": t.VariantTag, "repeatIndex": t.RepeatIndex,
			})
		}
		body, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(body))
	}
	code := runner.ExitCode(outcome.Result)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// watchLoop re-runs the full pipeline whenever a discovered file
// changes, per SPEC_FULL.md's supplemented --watch feature. Each
// iteration re-discovers and re-generates so a newly added or deleted
// test is picked up, not just re-execution of the prior plan.
func watchLoop(ctx context.Context, opts runner.Options, mux *reporter.Multiplexer, projectRoot string) error {
	w, err := discovery.NewWatcher(projectRoot)
	if err != nil {
		return fmt.Errorf("goderunner: --watch: %w", err)
	}
	defer w.Close()

	clog.Info("watching %s for changes", projectRoot)
	for {
		if _, err := runner.Run(ctx, opts, mux); err != nil {
			clog.Error("run failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-w.Changed:
			if !ok {
				return nil
			}
			clog.Info("change detected: %s", changed)
			debounce(w.Changed)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			clog.Error("watch error: %v", err)
		}
	}
}

// debounce drains any further changes that arrive within a short window
// of the first one, so a save that touches several files only triggers
// one re-run.
func debounce(changed <-chan string) {
	timer := time.NewTimer(150 * time.Millisecond)
	defer timer.Stop()
	for {
		select {
		case <-changed:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(150 * time.Millisecond)
		case <-timer.C:
			return
		}
	}
}

func (f flags) toTestRunner() config.TestRunner {
	maxFailures := f.maxFailures
	if f.maxFailuresOne {
		maxFailures = 1
	}
	return config.TestRunner{
		ForbidOnly:      f.forbidOnly,
		Grep:            f.grep,
		GlobalTimeout:   f.globalTimeout,
		Workers:         f.workers,
		MaxFailures:     maxFailures,
		Output:          f.output,
		Quiet:           f.quiet,
		RepeatEach:      f.repeatEach,
		Reporters:       f.reporters,
		Retries:         f.retries,
		Shard:           f.shard,
		SnapshotDir:     f.snapshotDir,
		TestMatch:       f.testMatch,
		TestIgnore:      f.testIgnore,
		FixtureMatch:    f.fixtureMatch,
		FixtureIgnore:   f.fixtureIgnore,
		Timeout:         f.timeout,
		UpdateSnapshots: f.updateSnapshots,
	}
}

func toRunnerOptions(merged config.TestRunner, projectRoot string, listOnly bool, nameFilters []string) (runner.Options, error) {
	var shard *generator.Shard
	if merged.Shard != "" {
		parsed, err := parseShard(merged.Shard)
		if err != nil {
			return runner.Options{}, fmt.Errorf("--shard: %w", err)
		}
		shard = parsed
	}

	workers := merged.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}

	return runner.Options{
		ProjectRoot: projectRoot,
		OutputDir:   merged.Output,
		Discovery: discovery.Config{
			TestMatch:     merged.TestMatch,
			TestIgnore:    merged.TestIgnore,
			FixtureMatch:  merged.FixtureMatch,
			FixtureIgnore: merged.FixtureIgnore,
			NameFilters:   nameFilters,
		},
		Generator: generator.Config{
			RepeatEach:     merged.RepeatEach,
			Grep:           merged.Grep,
			Shard:          shard,
			ForbidOnly:     merged.ForbidOnly,
			DefaultTimeout: defaultTimeoutMS(merged.Timeout),
		},
		Workers:         workers,
		Retries:         merged.Retries,
		MaxFailures:     merged.MaxFailures,
		GlobalTimeout:   time.Duration(merged.GlobalTimeout) * time.Millisecond,
		TimeoutMS:       defaultTimeoutMS(merged.Timeout),
		SnapshotDir:     merged.SnapshotDir,
		UpdateSnapshots: merged.UpdateSnapshots,
		ListOnly:        listOnly,
	}, nil
}

const defaultTestTimeoutMS = 30000

func defaultTimeoutMS(configured int64) int64 {
	if configured > 0 {
		return configured
	}
	return defaultTestTimeoutMS
}

// defaultWorkerCount implements spec.md §4.3's default pool size,
// max(1, cpu/2), used when --workers/-j is left at its zero value.
func defaultWorkerCount() int {
	if n := runtime.NumCPU() / 2; n > 1 {
		return n
	}
	return 1
}

func parseShard(s string) (*generator.Shard, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected c/t, got %q", s)
	}
	current, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid shard index %q: %w", parts[0], err)
	}
	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid shard total %q: %w", parts[1], err)
	}
	return &generator.Shard{Current: current, Total: total}, nil
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "internal-worker",
		Hidden: true,
		Short:  "Run as a dispatcher-spawned worker subprocess (not for direct use)",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := os.NewFile(3, "goderunner-ipc-in")
			out := os.NewFile(4, "goderunner-ipc-out")
			w := workerproc.NewWorker(in, out)
			return w.Run()
		},
	}
}
