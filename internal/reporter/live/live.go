// Package live implements the `--reporter=live` HTTP dashboard: a gin
// server that exposes the current run's progress as JSON, polled by a
// browser. Grounded on the teacher's archive/prototype/main.go
// HttpServer — same gin.New()+gin.Recovery() setup and JSON-response
// idiom, repurposed from a JS-exposed HTTP bridge into a plain Go
// status endpoint.
package live

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/rizqme/goderunner/internal/reporter"
	"github.com/rizqme/goderunner/internal/spectree"
)

type testStatus struct {
	FullTitle string          `json:"fullTitle"`
	File      string          `json:"file"`
	Status    spectree.Status `json:"status"`
	Flaky     bool            `json:"flaky"`
}

// Reporter serves a live-updating JSON snapshot of the run on Addr.
type Reporter struct {
	Addr string

	mu       sync.RWMutex
	running  map[spectree.TestID]*testStatus
	finished []*testStatus
	passed   int
	failed   int
	skipped  int
	total    int
	done     bool

	engine *gin.Engine
	srv    *http.Server
}

func New(addr string) *Reporter {
	r := &Reporter{Addr: addr, running: make(map[spectree.TestID]*testStatus)}
	gin.SetMode(gin.ReleaseMode)
	r.engine = gin.New()
	r.engine.Use(gin.Recovery())
	r.engine.GET("/status", r.handleStatus)
	return r
}

func (r *Reporter) OnBegin(cfg reporter.RunConfig, tree *spectree.Tree) {
	r.srv = &http.Server{Addr: r.Addr, Handler: r.engine}
	go func() {
		if err := r.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(gin.DefaultWriter, "live reporter: %v\n", err)
		}
	}()
}

func (r *Reporter) OnTestBegin(test *spectree.Test) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[test.ID] = &testStatus{FullTitle: test.FullTitle, File: test.File, Status: spectree.StatusRunning}
}

func (r *Reporter) OnStdout(*spectree.Test, string) {}
func (r *Reporter) OnStderr(*spectree.Test, string) {}

func (r *Reporter) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, test.ID)
	r.total++
	switch {
	case result.Status == spectree.StatusSkipped:
		r.skipped++
	case result.Status == spectree.StatusFailed && !test.Ok(false):
		r.failed++
	default:
		r.passed++
	}
	r.finished = append(r.finished, &testStatus{
		FullTitle: test.FullTitle,
		File:      test.File,
		Status:    result.Status,
		Flaky:     test.Flaky(),
	})
}

func (r *Reporter) OnFlaky(*spectree.Test) {}
func (r *Reporter) OnTimeout()             {}

func (r *Reporter) OnEnd() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	if r.srv != nil {
		_ = r.srv.Close()
	}
}

func (r *Reporter) handleStatus(c *gin.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	running := make([]*testStatus, 0, len(r.running))
	for _, s := range r.running {
		running = append(running, s)
	}
	c.JSON(http.StatusOK, gin.H{
		"done":     r.done,
		"passed":   r.passed,
		"failed":   r.failed,
		"skipped":  r.skipped,
		"total":    r.total,
		"running":  running,
		"finished": r.finished,
	})
}
