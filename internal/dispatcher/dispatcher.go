// Package dispatcher owns the worker pool: assigning test groups,
// recovering from worker crashes, retrying failed tests, and honoring
// max-failures / SIGINT / global-timeout stop conditions, per spec.md
// §4.3. It never touches a test's body directly — that is
// internal/workerproc's job in the subprocess this package spawns.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rizqme/goderunner/internal/protocol"
	"github.com/rizqme/goderunner/internal/spectree"
)

// decode unmarshals an Envelope's params into dst, ignoring malformed
// payloads (a worker bug should not crash the dispatcher).
func decode(env protocol.Envelope, dst interface{}) {
	_ = json.Unmarshal(env.Params, dst)
}

// Sink receives the dispatcher's lifecycle events, in the shape spec.md
// §4.6 defines for the reporter multiplexer. internal/reporter.Multiplexer
// implements this; kept as a local interface so dispatcher never imports
// reporter (reporter is a downstream consumer of dispatcher's events, not
// a dependency of it).
type Sink interface {
	OnTestBegin(test *spectree.Test)
	OnStdout(test *spectree.Test, chunk string)
	OnStderr(test *spectree.Test, chunk string)
	OnTestEnd(test *spectree.Test, result *spectree.TestResult)
	OnTimeout()
	OnEnd()
}

// Config bundles every run-level option the dispatcher consumes.
type Config struct {
	Workers          int
	MaxFailures      int // 0 = unlimited
	Retries          int
	GlobalTimeout    time.Duration // 0 = none
	DefaultTimeoutMS int64
	ProjectRoot      string
	OutputDir        string
	SnapshotDir      string
	UpdateSnapshots  bool

	// WorkerBinary/WorkerArgs launch a worker subprocess; the dispatcher
	// appends "internal-worker" itself (see spawnWorker).
	WorkerBinary string
	WorkerArgs   []string
}

// Result is the dispatcher's final disposition for a run.
type Result struct {
	Outcome string // "passed", "failed", "forbid-only", "no-tests", "sigint"
	Failed  int
	Flaky   int
}

// Dispatcher runs one batch of Groups to completion against a pool of
// worker subprocesses.
type Dispatcher struct {
	cfg  Config
	sink Sink

	mu          sync.Mutex
	queue       []*Group
	retryCounts map[spectree.TestID]int
	failures    int
	flaky       int

	// run-scoped state, set up by Run and used by crash recovery to spawn
	// replacement workers.
	runCtx   context.Context
	spawnSem *semaphore.Weighted
	events   chan event
	pumps    *errgroup.Group
	workers  []*workerHandle
}

// New creates a Dispatcher for one run.
func New(cfg Config, sink Sink) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		cfg:         cfg,
		sink:        sink,
		retryCounts: make(map[spectree.TestID]int),
	}
}

type event struct {
	workerIdx int
	env       protocol.Envelope
	readErr   error
}

// Run dispatches every group to completion, returning the run's final
// Result. ctx cancellation (e.g. a second SIGINT) hard-stops the run.
func (d *Dispatcher) Run(ctx context.Context, groups []*Group) (*Result, error) {
	if len(groups) == 0 {
		return &Result{Outcome: "no-tests"}, nil
	}
	d.queue = append(d.queue, groups...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var globalTimer <-chan time.Time
	if d.cfg.GlobalTimeout > 0 {
		t := time.NewTimer(d.cfg.GlobalTimeout)
		defer t.Stop()
		globalTimer = t.C
	}

	d.runCtx = runCtx
	d.spawnSem = semaphore.NewWeighted(int64(d.cfg.Workers))
	d.events = make(chan event, 256)
	var pumps errgroup.Group
	d.pumps = &pumps

	workers := make([]*workerHandle, d.cfg.Workers)
	d.workers = workers
	for i := 0; i < d.cfg.Workers; i++ {
		h, err := d.startWorker(runCtx, i, d.spawnSem)
		if err != nil {
			return nil, err
		}
		workers[i] = h
		d.pump(h)
	}

	stopping := false
	sigintCount := 0
	timedOutGlobally := false

	var dispatchNext func(h *workerHandle)
	dispatchNext = func(h *workerHandle) {
		d.mu.Lock()
		if stopping || len(d.queue) == 0 {
			h.idle = true
			d.mu.Unlock()
			return
		}
		g := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		h.idle = false
		h.group = g
		h.lastBegin = -1
		// A send failure means the worker's stdin pipe is already gone
		// (e.g. it just self-terminated after a fatalError) — treat it
		// the same as a crash: requeue the group and spin up a
		// replacement rather than silently idling this slot forever.
		if err := h.send(protocol.MethodRun, buildRunParams(g)); err != nil {
			d.handleCrash(h, dispatchNext)
		}
	}

	allIdleAndEmpty := func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if len(d.queue) != 0 {
			return false
		}
		for _, h := range workers {
			if h != nil && !h.idle {
				return false
			}
		}
		return true
	}

loop:
	for {
		select {
		case <-sigCh:
			sigintCount++
			if sigintCount == 1 {
				stopping = true
				d.drainAndStop(workers)
			} else {
				cancel()
				for _, h := range workers {
					if h != nil {
						h.kill()
					}
				}
				break loop
			}

		case <-globalTimer:
			timedOutGlobally = true
			d.failInFlight(workers, "global timeout exceeded")
			d.sink.OnTimeout()
			cancel()
			for _, h := range workers {
				if h != nil {
					h.kill()
				}
			}
			break loop

		case ev := <-d.events:
			h := workers[ev.workerIdx]
			if ev.readErr != nil {
				if !stopping {
					d.handleCrash(h, dispatchNext)
				}
				continue
			}
			done := d.handleEvent(h, ev.env)
			if done {
				if stopping {
					h.idle = true
				} else {
					dispatchNext(h)
				}
			}
			if d.cfg.MaxFailures > 0 && d.failures >= d.cfg.MaxFailures && !stopping {
				stopping = true
				d.drainAndStop(workers)
			}
			if allIdleAndEmpty() {
				break loop
			}
		}
	}

	for _, h := range workers {
		if h != nil {
			h.close()
		}
	}
	_ = pumps.Wait()

	d.sink.OnEnd()

	outcome := "passed"
	if sigintCount > 0 {
		outcome = "sigint"
	} else if timedOutGlobally || d.failures > 0 {
		outcome = "failed"
	}
	return &Result{Outcome: outcome, Failed: d.failures, Flaky: d.flaky}, nil
}

func (d *Dispatcher) startWorker(ctx context.Context, index int, sem *semaphore.Weighted) (*workerHandle, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	h, err := spawnWorker(ctx, index, d.cfg.WorkerBinary, d.cfg.WorkerArgs)
	if err != nil {
		sem.Release(1)
		return nil, err
	}
	init := protocol.InitParams{
		WorkerIndex: index,
		Config: protocol.ConfigSnapshot{
			DefaultTimeoutMS: d.cfg.DefaultTimeoutMS,
			Retries:          d.cfg.Retries,
			ProjectRoot:      d.cfg.ProjectRoot,
			OutputDir:        d.cfg.OutputDir,
			SnapshotDir:      d.cfg.SnapshotDir,
			UpdateSnapshots:  d.cfg.UpdateSnapshots,
		},
	}
	if err := h.send(protocol.MethodInit, init); err != nil {
		return nil, fmt.Errorf("dispatcher: init worker %d: %w", index, err)
	}
	go func() {
		<-h.exited
		sem.Release(1)
	}()
	return h, nil
}

func (d *Dispatcher) pump(h *workerHandle) {
	d.pumps.Go(func() error {
		for {
			env, err := h.reader.Read()
			if err != nil {
				d.events <- event{workerIdx: h.index, readErr: err}
				return nil
			}
			d.events <- event{workerIdx: h.index, env: env}
		}
	})
}

// handleEvent processes one worker->parent message, reporting it to the
// sink. It returns true when the worker has finished its group (done or
// fatalError) and is ready for a new assignment.
func (d *Dispatcher) handleEvent(h *workerHandle, env protocol.Envelope) bool {
	switch env.Method {
	case protocol.MethodReady:
		return false
	case protocol.MethodTestBegin:
		var p protocol.TestBeginParams
		decode(env, &p)
		if t := d.testByID(h.group, p.TestID); t != nil {
			h.lastBegin = indexOf(h.group, p.TestID)
			d.sink.OnTestBegin(t)
		}
		return false
	case protocol.MethodStdout:
		var p protocol.StdioParams
		decode(env, &p)
		d.sink.OnStdout(d.testByID(h.group, p.TestID), p.Text)
		return false
	case protocol.MethodStderr:
		var p protocol.StdioParams
		decode(env, &p)
		d.sink.OnStderr(d.testByID(h.group, p.TestID), p.Text)
		return false
	case protocol.MethodTestEnd:
		var p protocol.TestEndParams
		decode(env, &p)
		t := d.testByID(h.group, p.TestID)
		if t == nil {
			return false
		}
		t.Results = append(t.Results, p.Result)
		h.lastBegin = -1
		d.sink.OnTestEnd(t, p.Result)
		d.accountResult(t, p.Result, h.group)
		return false
	case protocol.MethodDone:
		return true
	case protocol.MethodFatalError:
		d.handleFatal(h)
		return true
	default:
		return false
	}
}

// accountResult updates failure/flaky counters and re-enqueues a failed
// or timed-out test as a single-test retry group, per spec.md §4.3.
func (d *Dispatcher) accountResult(t *spectree.Test, result *spectree.TestResult, g *Group) {
	d.mu.Lock()
	defer d.mu.Unlock()

	spec := result.Status
	if spec != spectree.StatusFailed && spec != spectree.StatusTimedOut {
		if d.retryCounts[t.ID] > 0 && spec == spectree.StatusPassed {
			d.flaky++
		}
		return
	}

	attempt := d.retryCounts[t.ID]
	if attempt < d.cfg.Retries {
		d.retryCounts[t.ID] = attempt + 1
		d.queue = append(d.queue, SingleTest(t, attempt+1, uuid.NewString))
		return
	}
	d.failures++
}

// failInFlight marks every worker's currently-running test timedOut with
// the given message, reporting it to the sink — used when the global
// timeout expires so each in-flight test still gets exactly one
// onTestEnd before the run is torn down (spec.md §4.3's GlobalTimeout
// policy: "all in-flight -> timedOut").
func (d *Dispatcher) failInFlight(workers []*workerHandle, msg string) {
	for _, h := range workers {
		if h == nil || h.group == nil || h.lastBegin < 0 || h.lastBegin >= len(h.group.Tests) {
			continue
		}
		t := h.group.Tests[h.lastBegin]
		result := &spectree.TestResult{
			Status: spectree.StatusTimedOut,
			Error:  &spectree.TestError{Message: msg},
		}
		t.Results = append(t.Results, result)
		d.sink.OnTestEnd(t, result)
		d.mu.Lock()
		d.failures++
		d.mu.Unlock()
		h.lastBegin = -1
	}
}

// handleCrash implements spec.md §4.3's "Crash recovery": the in-flight
// test is failed with a synthesized error, the remainder of the group is
// split into a fresh group and re-enqueued, and a replacement worker is
// spawned in h's slot so pool capacity never shrinks.
func (d *Dispatcher) handleCrash(h *workerHandle, dispatchNext func(*workerHandle)) {
	if h.group != nil && h.lastBegin >= 0 && h.lastBegin < len(h.group.Tests) {
		t := h.group.Tests[h.lastBegin]
		result := &spectree.TestResult{
			Status: spectree.StatusFailed,
			Error:  &spectree.TestError{Message: "worker crashed during this test"},
		}
		t.Results = append(t.Results, result)
		d.sink.OnTestEnd(t, result)
		d.mu.Lock()
		d.failures++
		d.mu.Unlock()
	}
	if h.group != nil {
		remainderFrom := h.lastBegin + 1
		if h.lastBegin < 0 {
			remainderFrom = 0
		}
		if rest := h.group.SplitAt(remainderFrom, uuid.NewString); rest != nil {
			d.mu.Lock()
			d.queue = append(d.queue, rest)
			d.mu.Unlock()
		}
	}
	h.close()

	replacement, err := d.startWorker(d.runCtx, h.index, d.spawnSem)
	if err != nil {
		// The pool can't be replenished (likely runCtx cancellation on
		// shutdown); leave the slot empty rather than crash the run.
		d.workers[h.index] = nil
		return
	}
	d.workers[h.index] = replacement
	d.pump(replacement)
	dispatchNext(replacement)
}

func (d *Dispatcher) handleFatal(h *workerHandle) {
	if h.group != nil && h.lastBegin >= 0 && h.lastBegin < len(h.group.Tests) {
		t := h.group.Tests[h.lastBegin]
		result := &spectree.TestResult{
			Status: spectree.StatusFailed,
			Error:  &spectree.TestError{Message: "worker reported a fatal error"},
		}
		t.Results = append(t.Results, result)
		d.sink.OnTestEnd(t, result)
		d.mu.Lock()
		d.failures++
		d.mu.Unlock()
	}
	if h.group != nil {
		remainderFrom := h.lastBegin + 1
		if h.lastBegin < 0 {
			remainderFrom = 0
		}
		if rest := h.group.SplitAt(remainderFrom, uuid.NewString); rest != nil {
			d.mu.Lock()
			d.queue = append(d.queue, rest)
			d.mu.Unlock()
		}
	}
}

// drainAndStop sends stop() to every idle-or-busy worker and stops
// feeding the queue, per spec.md §4.3's maxFailures/SIGINT stop
// conditions.
func (d *Dispatcher) drainAndStop(workers []*workerHandle) {
	d.mu.Lock()
	d.queue = nil
	d.mu.Unlock()
	for _, h := range workers {
		if h != nil {
			_ = h.send(protocol.MethodStop, protocol.StopParams{})
		}
	}
}

func (d *Dispatcher) testByID(g *Group, id spectree.TestID) *spectree.Test {
	if g == nil {
		return nil
	}
	for _, t := range g.Tests {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func indexOf(g *Group, id spectree.TestID) int {
	for i, t := range g.Tests {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func buildRunParams(g *Group) protocol.RunParams {
	ids := make([]spectree.TestID, len(g.Tests))
	ordinals := make([]int, len(g.Tests))
	for i, t := range g.Tests {
		ids[i] = t.ID
		ordinals[i] = t.SpecOrdinal
	}
	return protocol.RunParams{
		GroupID:      g.ID,
		File:         g.File,
		VariantTag:   g.VariantTag,
		Variant:      g.Variant,
		TestIDs:      ids,
		SpecOrdinals: ordinals,
		RepeatIndex:  g.RepeatIndex,
		RetryIndex:   g.RetryIndex,
	}
}
