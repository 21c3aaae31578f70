package dispatcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rizqme/goderunner/internal/protocol"
)

// workerHandle owns one worker subprocess and the private IPC pipes into
// it — fd 3 (parent→worker) and fd 4 (worker→parent), kept separate from
// the worker's inherited stdout/stderr so StdioCapture can redirect those
// for per-test attribution without colliding with control messages.
type workerHandle struct {
	index  int
	cmd    *exec.Cmd
	writer *protocol.Writer
	reader *protocol.Reader

	toChildW  *os.File
	fromChildR *os.File

	idle         bool
	group        *Group
	lastBegin    int // index into group.Tests of the test currently mid-flight, -1 if none
	exited       chan error
}

// spawnWorker launches one worker subprocess running `binary args...
// internal-worker`, wiring its IPC pipes.
func spawnWorker(ctx context.Context, index int, binary string, args []string) (*workerHandle, error) {
	toChildR, toChildW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("dispatcher: create parent->worker pipe: %w", err)
	}
	fromChildR, fromChildW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("dispatcher: create worker->parent pipe: %w", err)
	}

	cmdArgs := append(append([]string{}, args...), "internal-worker")
	cmd := exec.CommandContext(ctx, binary, cmdArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{toChildR, fromChildW}

	if err := cmd.Start(); err != nil {
		toChildR.Close()
		toChildW.Close()
		fromChildR.Close()
		fromChildW.Close()
		return nil, fmt.Errorf("dispatcher: start worker %d: %w", index, err)
	}

	// The parent's ends of the child's fds must be closed here; the
	// duplicated fds in the child process keep it alive.
	toChildR.Close()
	fromChildW.Close()

	h := &workerHandle{
		index:      index,
		cmd:        cmd,
		writer:     protocol.NewWriter(toChildW),
		reader:     protocol.NewReader(fromChildR),
		toChildW:   toChildW,
		fromChildR: fromChildR,
		idle:       true,
		lastBegin:  -1,
		exited:     make(chan error, 1),
	}

	go func() {
		h.exited <- cmd.Wait()
	}()

	return h, nil
}

func (h *workerHandle) send(method protocol.Method, params interface{}) error {
	return h.writer.Write(method, params)
}

func (h *workerHandle) close() {
	h.toChildW.Close()
	h.fromChildR.Close()
}

func (h *workerHandle) kill() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}
