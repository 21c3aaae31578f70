// Package reporter implements the fan-out contract of spec.md §4.6: one
// Multiplexer dispatching the run's lifecycle events to N independent
// Reporter delegates, isolating each from the others' panics and errors.
package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/rizqme/goderunner/internal/spectree"
)

// RunConfig is the subset of run configuration a reporter's onBegin needs
// to render a header (worker count, output dir, etc).
type RunConfig struct {
	Workers     int
	OutputDir   string
	ProjectRoot string
}

// Reporter receives the run's lifecycle events, per spec.md §4.6. All
// methods but OnTestBegin/OnTestEnd may be called with a nil test — e.g. a
// worker's console output captured outside any in-flight test.
type Reporter interface {
	OnBegin(cfg RunConfig, tree *spectree.Tree)
	OnTestBegin(test *spectree.Test)
	OnStdout(test *spectree.Test, chunk string)
	OnStderr(test *spectree.Test, chunk string)
	OnTestEnd(test *spectree.Test, result *spectree.TestResult)
	OnFlaky(test *spectree.Test)
	OnTimeout()
	OnEnd()
}

// Multiplexer fans every event out to its Delegates in registration
// order, per spec.md §4.6 and §9 "Reporter error isolation": a delegate
// that panics or whose call we cannot trust must never abort the run, so
// every dispatch is guarded and failures are logged to stderr.
type Multiplexer struct {
	mu        sync.Mutex
	Delegates []Reporter
}

// NewMultiplexer builds a Multiplexer over delegates, in the order given.
func NewMultiplexer(delegates ...Reporter) *Multiplexer {
	return &Multiplexer{Delegates: delegates}
}

func (m *Multiplexer) dispatch(name string, fn func(Reporter)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.Delegates {
		m.guard(name, d, fn)
	}
}

func (m *Multiplexer) guard(name string, d Reporter, fn func(Reporter)) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "reporter %T: panic in %s: %v\n", d, name, r)
		}
	}()
	fn(d)
}

func (m *Multiplexer) OnBegin(cfg RunConfig, tree *spectree.Tree) {
	m.dispatch("onBegin", func(d Reporter) { d.OnBegin(cfg, tree) })
}

func (m *Multiplexer) OnTestBegin(test *spectree.Test) {
	m.dispatch("onTestBegin", func(d Reporter) { d.OnTestBegin(test) })
}

func (m *Multiplexer) OnStdout(test *spectree.Test, chunk string) {
	m.dispatch("onStdout", func(d Reporter) { d.OnStdout(test, chunk) })
}

func (m *Multiplexer) OnStderr(test *spectree.Test, chunk string) {
	m.dispatch("onStderr", func(d Reporter) { d.OnStderr(test, chunk) })
}

func (m *Multiplexer) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	m.dispatch("onTestEnd", func(d Reporter) { d.OnTestEnd(test, result) })
	if test.Flaky() {
		m.OnFlaky(test)
	}
}

func (m *Multiplexer) OnFlaky(test *spectree.Test) {
	m.dispatch("onFlaky", func(d Reporter) { d.OnFlaky(test) })
}

func (m *Multiplexer) OnTimeout() {
	m.dispatch("onTimeout", func(d Reporter) { d.OnTimeout() })
}

func (m *Multiplexer) OnEnd() {
	m.dispatch("onEnd", func(d Reporter) { d.OnEnd() })
}
