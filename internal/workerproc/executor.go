package workerproc

import (
	"fmt"
	"time"

	"github.com/rizqme/goderunner/internal/registration"
	"github.com/rizqme/goderunner/internal/snapshot"
	"github.com/rizqme/goderunner/internal/spectree"
)

// Executor runs one worker's assigned group of Tests in order, per
// spec.md §4.5: suite beforeAll/afterAll tracked once per worker, env
// lifecycle bound to the group's variant, and the before/after-each
// ordering invariants of §3.
type Executor struct {
	tree   *spectree.Tree
	loader *registration.Loader

	workerIndex int
	project     string

	// beforeAllRun tracks which Suites have had their beforeAll executed
	// in this worker, so a suite shared by multiple tests in the group
	// only runs it once (spec.md §3 invariant).
	beforeAllRun map[spectree.SuiteID]bool
	// pendingAfterAll is the stack of Suites awaiting afterAll, in the
	// order their beforeAll ran — afterAll runs in reverse of this.
	pendingAfterAll []spectree.SuiteID
	workerState     map[string]interface{}

	envChain       []*spectree.Env
	envBeforeAllRan bool

	snapshots *snapshot.Store
}

// NewExecutor builds an Executor for one worker. envChain is the active
// group's variant env chain (root-to-leaf storage order, per
// Factory.EnvChain), resolved once by the caller before the group starts.
// snapshots may be nil, in which case toMatchSnapshot always passes
// (used by tests that don't exercise snapshot behavior).
func NewExecutor(tree *spectree.Tree, loader *registration.Loader, workerIndex int, project string, envChain []*spectree.Env, snapshots *snapshot.Store) *Executor {
	return &Executor{
		tree:         tree,
		loader:       loader,
		workerIndex:  workerIndex,
		project:      project,
		beforeAllRun: make(map[spectree.SuiteID]bool),
		workerState:  make(map[string]interface{}),
		envChain:     envChain,
		snapshots:    snapshots,
	}
}

// Attempt runs one execution of test and returns its TestResult. The
// caller owns retry bookkeeping; Attempt always runs exactly once.
func (e *Executor) Attempt(test *spectree.Test, retryIndex int) *spectree.TestResult {
	start := time.Now()
	result := &spectree.TestResult{
		RetryIndex: retryIndex,
		Start:      start,
	}

	if test.Skipped {
		result.Status = spectree.StatusSkipped
		result.Duration = time.Since(start)
		return result
	}

	spec := e.tree.Spec(test.Spec)
	ancestors := e.tree.Ancestors(spec.Suite)

	if err := e.ensureSuiteBeforeAll(ancestors); err != nil {
		result.Status = spectree.StatusFailed
		result.Error = &spectree.TestError{Message: err.Error()}
		result.Duration = time.Since(start)
		return result
	}

	timeout := test.Timeout
	info := spectree.NewTestInfo(test.Title, retryIndex, test.RepeatIndex, timeout, make(map[string]interface{}))
	if e.snapshots != nil {
		store := e.snapshots
		file, fullTitle := test.File, test.FullTitle
		info.SnapshotMatch = func(ordinal int, actual string) (bool, string, error) {
			return store.Match(file, snapshot.Key(fullTitle, ordinal), actual)
		}
	}

	deadline := start.Add(timeout)
	if timeout <= 0 {
		deadline = time.Time{}
	}

	timedOut, err := e.runAttemptBody(spec, ancestors, test, info, deadline)

	result.Duration = time.Since(start)
	result.Data = info.Data
	result.Annotations = info.Annotations

	switch {
	case timedOut:
		result.Status = spectree.StatusTimedOut
		result.Error = &spectree.TestError{Message: fmt.Sprintf("Timeout of %dms exceeded", timeout.Milliseconds())}
	case info.IsSkipped():
		result.Status = spectree.StatusSkipped
	case err != nil:
		if spec.ExpectedToFail || info.IsFailExpected() {
			result.Status = spectree.StatusPassed
		} else {
			result.Status = spectree.StatusFailed
			result.Error = &spectree.TestError{Message: err.Error()}
		}
	default:
		if spec.ExpectedToFail || info.IsFailExpected() {
			result.Status = spectree.StatusFailed
			result.Error = &spectree.TestError{Message: "passed unexpectedly"}
		} else {
			result.Status = spectree.StatusPassed
		}
	}

	return result
}

// runAttemptBody runs the before-each chain, the test body (if setup
// succeeded), then the after-each chain, always running every afterEach
// even when an earlier phase failed (spec.md §3). It returns whether the
// deadline was exceeded and the first error encountered, if any.
func (e *Executor) runAttemptBody(spec *spectree.Spec, ancestors []*spectree.Suite, test *spectree.Test, info *spectree.TestInfo, deadline time.Time) (timedOut bool, firstErr error) {
	type outcome struct {
		state map[string]interface{}
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		state := copyMap(e.workerState)
		var err error

		for _, env := range reversed(e.envChain) {
			if env == nil || env.BeforeEach == nil {
				continue
			}
			var merged map[string]interface{}
			merged, err = env.BeforeEach(info)
			mergeInto(state, merged)
			if err != nil {
				break
			}
		}

		if err == nil {
			for _, suite := range ancestors {
				for _, hook := range suite.BeforeEachHooks {
					var merged map[string]interface{}
					merged, err = hook.Fn(state)
					mergeInto(state, merged)
					if err != nil {
						break
					}
				}
				if err != nil {
					break
				}
			}
		}

		if err == nil && !info.IsSkipped() && spec.Body != nil {
			err = spec.Body(state, info)
		}

		var teardownErr error
		for i := len(ancestors) - 1; i >= 0; i-- {
			for _, hook := range ancestors[i].AfterEachHooks {
				if _, hErr := hook.Fn(state); hErr != nil && teardownErr == nil {
					teardownErr = hErr
				}
			}
		}
		for _, env := range e.envChain {
			if env == nil || env.AfterEach == nil {
				continue
			}
			if hErr := env.AfterEach(state); hErr != nil && teardownErr == nil {
				teardownErr = hErr
			}
		}
		if err == nil {
			err = teardownErr
		}

		done <- outcome{state: state, err: err}
	}()

	if deadline.IsZero() {
		out := <-done
		return false, out.err
	}

	select {
	case out := <-done:
		return false, out.err
	case <-time.After(time.Until(deadline)):
		// The attempt overran its budget. Per spec.md §4.5 cancellation,
		// teardown runs under the same (already-expired) budget rather
		// than a fresh one; we give it a short grace window and fall
		// back to treating the worker as hung if it never returns — the
		// dispatcher's crash-recovery path takes it from there.
		select {
		case out := <-done:
			return true, out.err
		case <-time.After(5 * time.Second):
			return true, fmt.Errorf("afterEach did not complete after timeout")
		}
	}
}

// ensureSuiteBeforeAll runs beforeAll for every ancestor suite (root to
// leaf) that has not yet run it in this worker, and the group's env
// beforeAll once, before the first such suite's hooks.
func (e *Executor) ensureSuiteBeforeAll(ancestors []*spectree.Suite) error {
	if !e.envBeforeAllRan {
		e.envBeforeAllRan = true
		for _, env := range reversed(e.envChain) {
			if env == nil || env.BeforeAll == nil {
				continue
			}
			merged, err := env.BeforeAll(&spectree.WorkerInfo{WorkerIndex: e.workerIndex, Project: e.project})
			if err != nil {
				return err
			}
			mergeInto(e.workerState, merged)
		}
	}

	for _, suite := range ancestors {
		if e.beforeAllRun[suite.ID] {
			continue
		}
		e.beforeAllRun[suite.ID] = true
		for _, hook := range suite.BeforeAllHooks {
			merged, err := hook.Fn(e.workerState)
			if err != nil {
				return err
			}
			mergeInto(e.workerState, merged)
		}
		e.pendingAfterAll = append(e.pendingAfterAll, suite.ID)
	}
	return nil
}

// Finish runs every pending afterAll (suites in reverse beforeAll order,
// then the group's env afterAll), called once after the group's last
// test. The dispatcher relies on Finish completing before `done` is sent.
func (e *Executor) Finish() error {
	var firstErr error
	for i := len(e.pendingAfterAll) - 1; i >= 0; i-- {
		suite := e.tree.Suite(e.pendingAfterAll[i])
		for _, hook := range suite.AfterAllHooks {
			if _, err := hook.Fn(e.workerState); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if e.envBeforeAllRan {
		for _, env := range e.envChain {
			if env == nil || env.AfterAll == nil {
				continue
			}
			if err := env.AfterAll(e.workerState); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func reversed(envs []*spectree.Env) []*spectree.Env {
	out := make([]*spectree.Env, len(envs))
	for i, e := range envs {
		out[len(envs)-1-i] = e
	}
	return out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
