// Package registration implements the thread-of-control captured while a
// test file is loaded: the process-wide "currently loading file" slot and
// the stack of open Suites that describe()/test()/hook registration calls
// push onto. It is VM-agnostic — internal/workerproc's bridge supplies the
// source location of each call (as read off the goja call stack) so this
// package never imports goja itself.
package registration

import (
	"fmt"
	"sync"

	"github.com/rizqme/goderunner/internal/rerr"
	"github.com/rizqme/goderunner/internal/spectree"
)

// Loc is the source location of a registration call, used for diagnostics
// and (for Spec) surfaced as Spec.Line/Spec.Col.
type Loc struct {
	File string
	Line int
	Col  int
}

// Loader is the registration context for one run. A fresh Loader is
// created once per worker process and reused across every file in a
// group: each BeginFile call seeds a new root Suite for that file while
// accumulating into the same Tree, so cross-file variant/factory state
// (declare/extend) survives between files.
type Loader struct {
	mu sync.Mutex

	currentFile string
	stack       []spectree.SuiteID

	tree      *spectree.Tree
	factories *factoryRegistry
}

// NewLoader creates an idle Loader (no file loading) with an empty Tree.
func NewLoader() *Loader {
	return &Loader{
		tree:      spectree.NewTree(),
		factories: newFactoryRegistry(),
	}
}

// Tree returns the arena built so far.
func (l *Loader) Tree() *spectree.Tree {
	return l.tree
}

// IsLoading reports whether a file is currently being loaded.
func (l *Loader) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentFile != ""
}

// BeginFile seeds a fresh root Suite for file and opens the registration
// phase. Re-entrant loads (a file loading itself again) are rejected by
// the caller (internal/workerproc), which tracks load-once semantics.
func (l *Loader) BeginFile(file string) spectree.SuiteID {
	l.mu.Lock()
	defer l.mu.Unlock()
	root := l.tree.AddSuite(spectree.NewRootSuite(file))
	l.currentFile = file
	l.stack = []spectree.SuiteID{root}
	return root
}

// EndFile closes the registration phase for the file most recently opened
// with BeginFile.
func (l *Loader) EndFile() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentFile = ""
	l.stack = nil
}

// assertLoading returns a RegistrationPhaseViolation if no file is
// currently loading. Must be called with l.mu held.
func (l *Loader) assertLoading() error {
	if l.currentFile == "" {
		return rerr.New(rerr.KindRegistrationPhaseViolation,
			"registration API called while no test file is loading", nil)
	}
	return nil
}

// assertSameFile returns a RegistrationPhaseViolation if a file is loading
// but the call did not originate from that file — the helper-file hook
// restriction of spec.md §4.1. Must be called with l.mu held.
func (l *Loader) assertSameFile(callerFile string) error {
	if err := l.assertLoading(); err != nil {
		return err
	}
	if callerFile != "" && callerFile != l.currentFile {
		return rerr.New(rerr.KindRegistrationPhaseViolation,
			fmt.Sprintf("Hook can only be defined in a test file (called from %s while loading %s)", callerFile, l.currentFile), nil)
	}
	return nil
}

func (l *Loader) top() *spectree.Suite {
	return l.tree.Suite(l.stack[len(l.stack)-1])
}
