package reporter

import (
	"fmt"
	"os"

	"github.com/rizqme/goderunner/internal/spectree"
)

// StdioEcho forwards each worker's captured console output straight to
// this process's own stdout/stderr, the live-tailing behavior spec.md
// §6's `--quiet` ("Suppress worker stdio capture to stdout") implies is
// otherwise on by default. It is always present in the Multiplexer
// alongside whichever named reporters --reporter selects, since it is
// not itself a selectable reporter format — just the default passthrough
// those formats don't attempt.
type StdioEcho struct {
	Quiet bool
}

func (s *StdioEcho) OnBegin(RunConfig, *spectree.Tree) {}
func (s *StdioEcho) OnTestBegin(*spectree.Test)        {}

func (s *StdioEcho) OnStdout(_ *spectree.Test, chunk string) {
	if s.Quiet {
		return
	}
	fmt.Fprint(os.Stdout, chunk)
}

func (s *StdioEcho) OnStderr(_ *spectree.Test, chunk string) {
	if s.Quiet {
		return
	}
	fmt.Fprint(os.Stderr, chunk)
}

func (s *StdioEcho) OnTestEnd(*spectree.Test, *spectree.TestResult) {}
func (s *StdioEcho) OnFlaky(*spectree.Test)                        {}
func (s *StdioEcho) OnTimeout()                                    {}
func (s *StdioEcho) OnEnd()                                        {}
