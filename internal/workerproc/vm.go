// Package workerproc implements the worker subprocess: a goja VM that
// loads one or more test files, registers their specs through
// internal/registration, and executes assigned groups on request from
// the dispatcher over internal/protocol.
package workerproc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/rizqme/goderunner/internal/registration"
	"github.com/rizqme/goderunner/internal/spectree"
)

// VM wraps a single goja runtime with the single-goroutine event-loop
// discipline the teacher's internal/runtime.Runtime uses: every
// JavaScript operation is queued and drained by one dedicated goroutine,
// so user scripts never observe concurrent execution even though the
// dispatcher and stdio pumps call in from other goroutines.
type VM struct {
	runtime  *goja.Runtime
	queue    chan func()
	disposed bool
}

// NewVM constructs a VM and starts its event loop goroutine.
func NewVM() *VM {
	vm := &VM{
		runtime: goja.New(),
		queue:   make(chan func(), 1024),
	}
	go vm.eventLoop()
	return vm
}

func (vm *VM) eventLoop() {
	for fn := range vm.queue {
		fn()
	}
}

// Queue schedules fn to run on the VM goroutine and blocks until it has.
func (vm *VM) Queue(fn func()) {
	done := make(chan struct{})
	vm.queue <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Runtime returns the underlying goja runtime. Callers must only touch it
// from inside a Queue callback.
func (vm *VM) Runtime() *goja.Runtime {
	return vm.runtime
}

// Dispose stops the event loop. No further Queue calls may be made.
func (vm *VM) Dispose() {
	if vm.disposed {
		return
	}
	vm.disposed = true
	close(vm.queue)
}

// LoadFile reads and executes a test file's top level, wrapped in its own
// function scope the way the teacher's runTestFileInScope does, so
// sibling test files loaded into the same VM don't leak globals into one
// another.
func (vm *VM) LoadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var runErr error
	vm.Queue(func() {
		wrapped := fmt.Sprintf("(function() {\n%s\n})();", string(source))
		_, runErr = vm.runtime.RunScript(abs, wrapped)
	})
	return runErr
}

// NewDiscoveryLoader wires a fresh VM, Loader, and Bridge the same way
// handleInit does for an executing worker — exported so internal/runner
// can build one tree in-process (for generation/grouping/reporting)
// without spawning a subprocess per discovery pass.
func NewDiscoveryLoader(workerIndex int) (*VM, *registration.Loader) {
	vm := NewVM()
	loader := registration.NewLoader()
	installGlobals(vm, workerIndex)
	NewBridge(vm, loader)
	return vm, loader
}

// LoadFiles loads fixtures then tests, in order, into loader's Tree —
// the same fixture-before-test sequencing spec.md §6 requires of
// discovery, and the same BeginFile/EndFile bracketing handleRun uses per
// file.
//
// A file that fails to parse or throws while its top level runs does not
// abort the rest of the run (spec.md §7's LoadError policy: "synthesize
// one failing test for that file; do not abort"). Such a file registers
// no Specs of its own, so a single placeholder Spec stands in for it;
// when a worker is later assigned that placeholder it reloads the file
// itself, hits the same error, and reports it through its own
// failGroupLoad path (worker.go) — this placeholder only needs to exist
// long enough for the generator to produce a Test to dispatch.
func LoadFiles(vm *VM, loader *registration.Loader, files []string) {
	for _, f := range files {
		root := loader.BeginFile(f)
		err := vm.LoadFile(f)
		loader.EndFile()
		if err != nil {
			loader.Tree().AddSpec(&spectree.Spec{
				Suite: root,
				Title: fmt.Sprintf("failed to load %s", f),
				File:  f,
			})
		}
	}
}
