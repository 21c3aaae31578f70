package reporter

import (
	"fmt"
	"os"

	"github.com/rizqme/goderunner/internal/spectree"
)

// Line prints a running single-line progress counter, overwriting itself
// with a carriage return, plus a failure summary at OnEnd.
type Line struct {
	out                                       *os.File
	passed, failed, skipped, timedOut, total int
	failures                                  []failure
}

func NewLine() *Line { return &Line{out: os.Stdout} }

func (l *Line) OnBegin(cfg RunConfig, tree *spectree.Tree) {}
func (l *Line) OnTestBegin(*spectree.Test)                 {}
func (l *Line) OnStdout(*spectree.Test, string)            {}
func (l *Line) OnStderr(*spectree.Test, string)             {}

func (l *Line) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	l.total++
	switch {
	case result.Status == spectree.StatusSkipped:
		l.skipped++
	case result.Status == spectree.StatusTimedOut:
		l.timedOut++
	case result.Status == spectree.StatusFailed && !test.Ok(false):
		l.failed++
		l.failures = append(l.failures, failure{test, result})
	default:
		l.passed++
	}
	fmt.Fprintf(l.out, "\r%d passed, %d failed, %d skipped (%d total)", l.passed, l.failed, l.skipped, l.total)
}

func (l *Line) OnFlaky(*spectree.Test) {}
func (l *Line) OnTimeout()             { fmt.Fprintln(l.out, "\nglobal timeout exceeded") }

func (l *Line) OnEnd() {
	fmt.Fprintln(l.out)
	for i, f := range l.failures {
		fmt.Fprintf(l.out, "%d) %s %s\n", i+1, f.test.FullTitle, f.test.Location())
		if f.result.Error != nil {
			fmt.Fprintf(l.out, "   %s\n", f.result.Error.Message)
		}
	}
}
