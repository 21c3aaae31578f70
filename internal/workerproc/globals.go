package workerproc

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// console is a trimmed version of the teacher's globals.Console: just the
// methods a test file actually needs (log/error/info/warn/debug), writing
// through fmt to the current os.Stdout/os.Stderr so StdioCapture's pipe
// redirection picks it up. Table/group/timer/counter variants are outside
// this runner's scope.
type console struct {
	mu sync.Mutex
}

func (c *console) Log(args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stdout, args...)
}

func (c *console) Info(args ...interface{})  { c.Log(args...) }
func (c *console) Debug(args ...interface{}) { c.Log(args...) }

func (c *console) Error(args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stderr, args...)
}

func (c *console) Warn(args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(os.Stderr, "Warning: ")
	fmt.Fprintln(os.Stderr, args...)
}

// installGlobals registers console and a minimal process object, adapted
// from the teacher's internal/modules/globals package but trimmed to what
// a spec/fixture file needs — no Buffer, no gode:-prefixed module system,
// since this runner has no module loader of its own (test files are
// self-contained goja scripts, not an app with a require graph).
func installGlobals(vm *VM, workerIndex int) {
	vm.Queue(func() {
		rt := vm.runtime
		c := &console{}
		consoleObj := rt.NewObject()
		consoleObj.Set("log", c.Log)
		consoleObj.Set("info", c.Info)
		consoleObj.Set("debug", c.Debug)
		consoleObj.Set("warn", c.Warn)
		consoleObj.Set("error", c.Error)
		rt.Set("console", consoleObj)

		env := make(map[string]string)
		for _, e := range os.Environ() {
			if idx := strings.Index(e, "="); idx != -1 {
				env[e[:idx]] = e[idx+1:]
			}
		}
		processObj := rt.NewObject()
		processObj.Set("pid", os.Getpid())
		processObj.Set("platform", runtime.GOOS)
		processObj.Set("arch", runtime.GOARCH)
		processObj.Set("env", env)
		processObj.Set("workerIndex", workerIndex)
		rt.Set("process", processObj)

		// sleep blocks the calling test body for ms milliseconds. Test
		// bodies run synchronously on this VM's single goroutine (see
		// wrapTestBody), so there is no promise-draining event loop to
		// resume a suspended async function — sleep is a plain blocking
		// call rather than something a caller awaits, and exists purely
		// so timeout/slow-test scenarios have something to exercise.
		rt.Set("sleep", func(ms int64) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	})
}
