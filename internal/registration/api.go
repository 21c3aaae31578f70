package registration

import (
	"github.com/rizqme/goderunner/internal/spectree"
)

// Describe pushes a new Suite under the current top-of-stack Suite, runs
// body, then pops back. body is expected to call back into this same
// Loader (Test, hooks, nested Describe) while executing.
func (l *Loader) Describe(title string, body func()) error {
	l.mu.Lock()
	if err := l.assertLoading(); err != nil {
		l.mu.Unlock()
		return err
	}
	parent := l.stack[len(l.stack)-1]
	suite := l.tree.AddSuite(&spectree.Suite{Title: title, File: l.currentFile, Parent: parent})
	l.stack = append(l.stack, suite)
	l.mu.Unlock()

	body()

	l.mu.Lock()
	l.stack = l.stack[:len(l.stack)-1]
	l.mu.Unlock()
	return nil
}

// DescribeOnly is Describe with the `only` modifier applied at
// registration time.
func (l *Loader) DescribeOnly(title string, body func()) error {
	if err := l.Describe(title, body); err != nil {
		return err
	}
	return l.markLastChildSuite(func(s *spectree.Suite) { s.Focused = true })
}

// DescribeSkip is Describe with the `skip` modifier applied at
// registration time.
func (l *Loader) DescribeSkip(title string, body func()) error {
	if err := l.Describe(title, body); err != nil {
		return err
	}
	return l.markLastChildSuite(func(s *spectree.Suite) { s.Skipped = true })
}

func (l *Loader) markLastChildSuite(mark func(*spectree.Suite)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	parent := l.top()
	if len(parent.Children) == 0 {
		return nil
	}
	last := parent.Children[len(parent.Children)-1]
	mark(l.tree.Suite(last))
	return nil
}

// TestOptions are the registration-time modifiers test() can carry.
type TestOptions struct {
	Focused        bool
	Skipped        bool
	ExpectedToFail bool
}

// Test appends a Spec to the current top-of-stack Suite, registered
// through the named factory (empty string for the root `test` export).
func (l *Loader) Test(loc Loc, title string, body spectree.TestFunc, opts TestOptions, factoryName string) (spectree.SpecID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.assertLoading(); err != nil {
		return 0, err
	}
	spec := &spectree.Spec{
		Suite:          l.stack[len(l.stack)-1],
		Title:          title,
		File:           loc.File,
		Line:           loc.Line,
		Col:            loc.Col,
		Body:           body,
		Focused:        opts.Focused,
		Skipped:        opts.Skipped,
		ExpectedToFail: opts.ExpectedToFail,
		FactoryName:    factoryName,
	}
	id := l.tree.AddSpec(spec)
	return id, nil
}

// Hook appends a hook of the given kind to the current top-of-stack
// Suite. callerFile is the source file the JS call actually came from,
// used to enforce the helper-file restriction.
func (l *Loader) Hook(callerFile string, kind spectree.HookKind, loc Loc, fn spectree.HookFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.assertSameFile(callerFile); err != nil {
		return err
	}
	hook := spectree.Hook{Kind: kind, Fn: fn, File: loc.File, Line: loc.Line, Col: loc.Col}
	suite := l.top()
	switch kind {
	case spectree.BeforeAll:
		suite.BeforeAllHooks = append(suite.BeforeAllHooks, hook)
	case spectree.AfterAll:
		suite.AfterAllHooks = append(suite.AfterAllHooks, hook)
	case spectree.BeforeEach:
		suite.BeforeEachHooks = append(suite.BeforeEachHooks, hook)
	case spectree.AfterEach:
		suite.AfterEachHooks = append(suite.AfterEachHooks, hook)
	}
	return nil
}
