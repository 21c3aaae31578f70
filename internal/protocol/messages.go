package protocol

import (
	"time"

	"github.com/rizqme/goderunner/internal/spectree"
)

// ConfigSnapshot is the subset of run configuration a worker needs to
// reproduce the parent's view of timeouts and retries, sent once in Init.
type ConfigSnapshot struct {
	DefaultTimeoutMS int64  `json:"defaultTimeoutMs"`
	Retries          int    `json:"retries"`
	ProjectRoot      string `json:"projectRoot"`
	OutputDir        string `json:"outputDir"`
	SnapshotDir      string `json:"snapshotDir"`
	UpdateSnapshots  bool   `json:"updateSnapshots"`
}

// InitParams is sent once per worker at startup.
type InitParams struct {
	WorkerIndex int                    `json:"workerIndex"`
	Config      ConfigSnapshot         `json:"config"`
	Variant     map[string]interface{} `json:"variant,omitempty"`
}

// RunParams assigns one test group to an idle worker. SpecOrdinals[i] is
// the 0-based position of TestIDs[i]'s Spec among the Specs File
// registers, in declaration order — it lets the worker resolve each test
// id against the tree it builds from its own (re-)load of File without
// needing the dispatcher's global Test numbering.
type RunParams struct {
	GroupID      string                 `json:"groupId"`
	File         string                 `json:"file"`
	VariantTag   string                 `json:"variantTag"`
	Variant      map[string]interface{} `json:"variant,omitempty"`
	TestIDs      []spectree.TestID      `json:"testIds"`
	SpecOrdinals []int                  `json:"specOrdinals"`
	RepeatIndex  int                    `json:"repeatIndex"`
	RetryIndex   int                    `json:"retryIndex"`
}

// StopParams carries no data; stop() is cooperative-shutdown-only.
type StopParams struct{}

// ReadyParams carries no data; ready() just signals the worker is idle.
type ReadyParams struct{}

// TestBeginParams announces a test has started.
type TestBeginParams struct {
	TestID    spectree.TestID `json:"testId"`
	StartWall time.Time       `json:"startWall"`
}

// StdioParams carries one chunk of captured stdout/stderr, attributed to
// the nearest test (TestID == 0 when no test was in scope at capture
// time).
type StdioParams struct {
	TestID spectree.TestID `json:"testId"`
	Text   string          `json:"text,omitempty"`
	Base64 string          `json:"base64,omitempty"`
}

// TestEndParams reports one attempt's outcome.
type TestEndParams struct {
	TestID spectree.TestID      `json:"testId"`
	Result *spectree.TestResult `json:"result"`
}

// DoneParams reports a group finished cleanly, including its afterAll
// hooks.
type DoneParams struct {
	GroupID string `json:"groupId"`
}

// FatalErrorParams reports an unrecoverable worker error; the dispatcher
// treats this identically to the worker process exiting uncleanly.
type FatalErrorParams struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}
