package spectree

import (
	"fmt"
	"path/filepath"
	"time"
)

// TestID is a stable, globally unique numeric id assigned to a Test at
// generation time. Dispatcher, protocol, and reporters all key on this.
type TestID int64

// Status is the terminal state of one TestResult.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timedOut"
	StatusSkipped  Status = "skipped"
)

// TestError carries a failure's message and (when available) a stack
// trace, independent of whatever error-wrapping internal/rerr adds on the
// Go side.
type TestError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *TestError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Annotation is an arbitrary {type, description} pair a test or hook can
// attach to a Test via testInfo.annotations.push(...).
type Annotation struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TestResult is one run attempt of a Test.
type TestResult struct {
	RetryIndex int           `json:"retryIndex"`
	Start      time.Time     `json:"start"`
	Duration   time.Duration `json:"duration"`
	Stdout     []string      `json:"stdout,omitempty"`
	Stderr     []string      `json:"stderr,omitempty"`
	Status     Status        `json:"status"`
	Error      *TestError    `json:"error,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Test is an expanded instance of a Spec for one environment variant and
// one repeat index.
type Test struct {
	ID          TestID
	Spec        SpecID
	File        string
	Line        int
	Col         int
	Title       string
	FullTitle   string
	Variant     map[string]interface{}
	VariantTag  string
	RepeatIndex int

	// SpecOrdinal is this Test's Spec's 0-based position among the Specs
	// its file registers, in declaration order. The dispatcher forwards
	// it in run(group) (see internal/protocol.RunParams) so a worker can
	// resolve a test id against its own independent load of the file.
	SpecOrdinal int

	Timeout time.Duration

	// Skipped is precomputed by the generator from the Spec/ancestor-Suite
	// skip marks (spec.md §4.2 step 2): a skipped Test is still emitted so
	// it is visible in --list output and reporters, but the worker never
	// runs its body.
	Skipped bool

	Results     []*TestResult
	Annotations []Annotation
}

// Location renders File:Line the way reporter failure summaries quote a
// test's source position (e.g. "one-failure.spec.ts:5").
func (t *Test) Location() string {
	return fmt.Sprintf("%s:%d", filepath.Base(t.File), t.Line)
}

// LastResult returns the most recent attempt, or nil if the Test has not
// run yet.
func (t *Test) LastResult() *TestResult {
	if len(t.Results) == 0 {
		return nil
	}
	return t.Results[len(t.Results)-1]
}

// Ok reports whether the Test's last attempt should be considered a pass
// for exit-code purposes, per spec.md §3:
//
//	last == passed && !expectedToFail, or
//	last == failed && expectedToFail, or
//	last == skipped
func (t *Test) Ok(expectedToFail bool) bool {
	last := t.LastResult()
	if last == nil {
		return false
	}
	switch last.Status {
	case StatusSkipped:
		return true
	case StatusPassed:
		return !expectedToFail
	case StatusFailed:
		return expectedToFail
	default:
		return false
	}
}

// Flaky reports whether an earlier attempt failed (or timed out) and the
// final attempt passed.
func (t *Test) Flaky() bool {
	if len(t.Results) < 2 {
		return false
	}
	last := t.LastResult()
	if last.Status != StatusPassed {
		return false
	}
	for _, r := range t.Results[:len(t.Results)-1] {
		if r.Status == StatusFailed || r.Status == StatusTimedOut {
			return true
		}
	}
	return false
}

// TestInfo is the object passed to a running test body and to its hooks. It
// exposes the mutators spec.md §4.5d names: skip/fail/setTimeout/slow, plus
// read-only metadata.
type TestInfo struct {
	Title           string
	Retry           int
	RepeatEachIndex int
	Timeout         time.Duration
	Data            map[string]interface{}
	Annotations     []Annotation

	// skipped/failed record that the body called skip()/fail(), and
	// skipCond/failCond the condition it passed; the executor reads them
	// through IsSkipped/IsFailExpected as an override of the naturally
	// derived status.
	skipped  bool
	skipCond bool
	failed   bool
	failCond bool

	setTimeoutCalled bool
	newTimeout       time.Duration

	slowCalled bool

	// snapshotOrdinal counts toMatchSnapshot calls within this attempt, so
	// a test body calling it more than once gets distinct stored entries.
	snapshotOrdinal int
	SnapshotMatch   func(ordinal int, actual string) (matched bool, diff string, err error)
}

// MatchSnapshot compares actual against this test's next snapshot slot.
// SnapshotMatch is nil when no snapshot store is configured (it always is
// in normal operation; nil only in unit tests that build a bare TestInfo).
func (i *TestInfo) MatchSnapshot(actual string) (matched bool, diff string, err error) {
	i.snapshotOrdinal++
	if i.SnapshotMatch == nil {
		return true, "", nil
	}
	return i.SnapshotMatch(i.snapshotOrdinal, actual)
}

// NewTestInfo builds the per-attempt info object handed to a test body.
func NewTestInfo(title string, retry, repeatIndex int, timeout time.Duration, data map[string]interface{}) *TestInfo {
	return &TestInfo{
		Title:           title,
		Retry:           retry,
		RepeatEachIndex: repeatIndex,
		Timeout:         timeout,
		Data:            data,
	}
}

// Skip marks the test skipped, unless cond is explicitly false.
func (i *TestInfo) Skip(cond ...bool) {
	i.skipped = true
	i.skipCond = len(cond) == 0 || cond[0]
}

// Fail marks the test expected-to-fail for this attempt, unless cond is
// explicitly false.
func (i *TestInfo) Fail(cond ...bool) {
	i.failed = true
	i.failCond = len(cond) == 0 || cond[0]
}

// IsSkipped reports whether Skip was called with a truthy condition.
func (i *TestInfo) IsSkipped() bool { return i.skipped && i.skipCond }

// IsFailExpected reports whether Fail was called with a truthy condition.
func (i *TestInfo) IsFailExpected() bool { return i.failed && i.failCond }

// SetTimeout replaces the effective timeout for the remainder of this
// attempt, per spec.md §3's `test.setTimeout(ms)`.
func (i *TestInfo) SetTimeout(d time.Duration) {
	i.setTimeoutCalled = true
	i.newTimeout = d
}

// TimeoutOverride reports the timeout requested via SetTimeout, if any.
func (i *TestInfo) TimeoutOverride() (time.Duration, bool) {
	return i.newTimeout, i.setTimeoutCalled
}

// Slow multiplies the effective timeout by 3, per spec.md §3.
func (i *TestInfo) Slow() { i.slowCalled = true }

// SlowCalled reports whether Slow was invoked during this attempt.
func (i *TestInfo) SlowCalled() bool { return i.slowCalled }

// PushAnnotation implements the supplemented testInfo.annotations.push
// convenience from SPEC_FULL.md.
func (i *TestInfo) PushAnnotation(a Annotation) {
	i.Annotations = append(i.Annotations, a)
}
