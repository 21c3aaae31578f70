package reporter

import (
	"fmt"
	"os"

	"github.com/rizqme/goderunner/internal/spectree"
)

// List prints one line per test as it finishes, in the verbose style of
// `mocha --reporter list`.
type List struct {
	out      *os.File
	failures []failure
}

func NewList() *List { return &List{out: os.Stdout} }

func (l *List) OnBegin(RunConfig, *spectree.Tree) {}
func (l *List) OnTestBegin(*spectree.Test)        {}
func (l *List) OnStdout(*spectree.Test, string)   {}
func (l *List) OnStderr(*spectree.Test, string)   {}

func (l *List) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	var mark string
	switch {
	case result.Status == spectree.StatusSkipped:
		mark = "-"
	case result.Status == spectree.StatusTimedOut:
		mark = "!"
	case result.Status == spectree.StatusFailed && !test.Ok(false):
		mark = "x"
		l.failures = append(l.failures, failure{test, result})
	default:
		mark = "✓"
	}
	fmt.Fprintf(l.out, "  %s %s (%s)\n", mark, test.FullTitle, result.Duration)
}

func (l *List) OnFlaky(test *spectree.Test) {
	fmt.Fprintf(l.out, "  ~ %s (flaky)\n", test.FullTitle)
}

func (l *List) OnTimeout() { fmt.Fprintln(l.out, "global timeout exceeded") }

// OnEnd prints the numbered failure summary, one `N) file:line` header
// per failure followed by its full title and message — the `N) file:line`
// form (and not `N) fullTitle file:line`) matches spec.md §8 scenario 2's
// exact substring ("1) one-failure.spec.ts:5").
func (l *List) OnEnd() {
	for i, f := range l.failures {
		fmt.Fprintf(l.out, "\n%d) %s\n", i+1, f.test.Location())
		fmt.Fprintf(l.out, "   %s\n", f.test.FullTitle)
		if f.result.Error != nil {
			fmt.Fprintf(l.out, "   %s\n", f.result.Error.Message)
		}
	}
}
