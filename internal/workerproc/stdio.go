package workerproc

import (
	"os"
	"sync"

	"github.com/rizqme/goderunner/internal/protocol"
	"github.com/rizqme/goderunner/internal/spectree"
)

// StdioCapture redirects the worker process's os.Stdout/os.Stderr through
// pipes and attributes each chunk to whichever test is currently running,
// per spec.md §4.4's stdout(testId, text)/stderr(...) messages. Output
// observed between tests (testId == 0) is still forwarded so --quiet's
// absence doesn't silently drop it.
type StdioCapture struct {
	mu      sync.Mutex
	current spectree.TestID

	writer *protocol.Writer

	origStdout, origStderr *os.File
	stdoutW, stderrW       *os.File
}

// NewStdioCapture replaces os.Stdout/os.Stderr with pipes and starts
// pumping their output to writer as stdout/stderr protocol messages.
func NewStdioCapture(writer *protocol.Writer) (*StdioCapture, error) {
	c := &StdioCapture{writer: writer}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	c.origStdout, c.origStderr = os.Stdout, os.Stderr
	c.stdoutW, c.stderrW = outW, errW
	os.Stdout, os.Stderr = outW, errW

	go c.pump(outR, protocol.MethodStdout)
	go c.pump(errR, protocol.MethodStderr)

	return c, nil
}

func (c *StdioCapture) pump(r *os.File, method protocol.Method) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.mu.Lock()
			testID := c.current
			c.mu.Unlock()
			_ = c.writer.Write(method, protocol.StdioParams{TestID: testID, Text: string(buf[:n])})
		}
		if err != nil {
			return
		}
	}
}

// SetCurrentTest attributes subsequent stdio output to testID (0 for
// "no test in scope").
func (c *StdioCapture) SetCurrentTest(testID spectree.TestID) {
	c.mu.Lock()
	c.current = testID
	c.mu.Unlock()
}

// Close restores the original stdio streams.
func (c *StdioCapture) Close() {
	os.Stdout, os.Stderr = c.origStdout, c.origStderr
	c.stdoutW.Close()
	c.stderrW.Close()
}
