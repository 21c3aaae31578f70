package reporter

import (
	"fmt"
	"os"

	"github.com/rizqme/goderunner/internal/spectree"
)

// Dot prints one character per attempt, mocha/jest "dot" reporter style,
// then a failure summary at OnEnd.
type Dot struct {
	out      *os.File
	column   int
	failures []failure
}

type failure struct {
	test   *spectree.Test
	result *spectree.TestResult
}

func NewDot() *Dot { return &Dot{out: os.Stdout} }

func (d *Dot) OnBegin(RunConfig, *spectree.Tree) {}
func (d *Dot) OnTestBegin(*spectree.Test)        {}
func (d *Dot) OnStdout(*spectree.Test, string)   {}
func (d *Dot) OnStderr(*spectree.Test, string)   {}

func (d *Dot) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	symbol := "."
	switch {
	case result.Status == spectree.StatusSkipped:
		symbol = "-"
	case result.Status == spectree.StatusTimedOut:
		symbol = "T"
	case result.Status == spectree.StatusFailed && !test.Ok(false):
		symbol = "F"
		d.failures = append(d.failures, failure{test, result})
	}
	fmt.Fprint(d.out, symbol)
	d.column++
	if d.column%80 == 0 {
		fmt.Fprintln(d.out)
	}
}

func (d *Dot) OnFlaky(*spectree.Test) {}
func (d *Dot) OnTimeout()             { fmt.Fprintln(d.out, "\nglobal timeout exceeded") }

func (d *Dot) OnEnd() {
	if d.column%80 != 0 {
		fmt.Fprintln(d.out)
	}
	for i, f := range d.failures {
		fmt.Fprintf(d.out, "\n%d) %s %s\n", i+1, f.test.FullTitle, f.test.Location())
		if f.result.Error != nil {
			fmt.Fprintf(d.out, "   %s\n", f.result.Error.Message)
		}
	}
}
