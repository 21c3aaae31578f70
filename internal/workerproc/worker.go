package workerproc

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rizqme/goderunner/internal/protocol"
	"github.com/rizqme/goderunner/internal/registration"
	"github.com/rizqme/goderunner/internal/snapshot"
	"github.com/rizqme/goderunner/internal/spectree"
)

// Worker is the worker-side half of the parent↔worker protocol: it reads
// init/run/stop messages from ipcIn and writes lifecycle events to ipcOut,
// per spec.md §4.4. The IPC channel is a dedicated pipe (not the process's
// inherited stdout/stderr, which StdioCapture owns separately for
// attributing a test file's own console output).
type Worker struct {
	reader *protocol.Reader
	writer *protocol.Writer

	vm     *VM
	loader *registration.Loader
	stdio  *StdioCapture

	workerIndex int
	config      protocol.ConfigSnapshot
	variant     map[string]interface{}

	// fileSpecs maps a loaded file to the contiguous run of SpecIDs its
	// load appended to the Tree, in registration order. A group's
	// SpecOrdinals index into this slice, per spec.md §4.4's run(group)
	// — the dispatcher resolved ordinals once at generation time so the
	// worker never needs to re-run the generator's filters.
	fileSpecs map[string][]spectree.SpecID
}

// NewWorker constructs a Worker. Call Run to enter its message loop.
func NewWorker(ipcIn io.Reader, ipcOut io.Writer) *Worker {
	return &Worker{
		reader:    protocol.NewReader(ipcIn),
		writer:    protocol.NewWriter(ipcOut),
		fileSpecs: make(map[string][]spectree.SpecID),
	}
}

// Run drives the worker's message loop until the parent sends stop() or
// the channel closes. It returns nil on a clean stop.
func (w *Worker) Run() error {
	stdio, err := NewStdioCapture(w.writer)
	if err != nil {
		return fmt.Errorf("worker: set up stdio capture: %w", err)
	}
	w.stdio = stdio
	defer w.stdio.Close()

	for {
		env, err := w.reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("worker: read message: %w", err)
		}

		switch env.Method {
		case protocol.MethodInit:
			if err := w.handleInit(env); err != nil {
				w.fatal(err)
				return err
			}
		case protocol.MethodRun:
			if err := w.handleRun(env); err != nil {
				w.fatal(err)
				return err
			}
		case protocol.MethodStop:
			return nil
		default:
			err := fmt.Errorf("unexpected method %q", env.Method)
			w.fatal(err)
			return err
		}
	}
}

func (w *Worker) fatal(err error) {
	_ = w.writer.Write(protocol.MethodFatalError, protocol.FatalErrorParams{Message: err.Error()})
}

func (w *Worker) handleInit(env protocol.Envelope) error {
	var params protocol.InitParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return err
	}
	w.workerIndex = params.WorkerIndex
	w.config = params.Config
	w.variant = params.Variant

	w.vm, w.loader = NewDiscoveryLoader(w.workerIndex)

	return w.writer.Write(protocol.MethodReady, protocol.ReadyParams{})
}

func (w *Worker) handleRun(env protocol.Envelope) error {
	var params protocol.RunParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		return err
	}

	if _, loaded := w.fileSpecs[params.File]; !loaded {
		before := len(w.loader.Tree().Specs)
		w.loader.BeginFile(params.File)
		loadErr := w.vm.LoadFile(params.File)
		w.loader.EndFile()
		after := len(w.loader.Tree().Specs)

		var ids []spectree.SpecID
		for i := before; i < after; i++ {
			ids = append(ids, spectree.SpecID(i))
		}
		w.fileSpecs[params.File] = ids

		if loadErr != nil {
			return w.failGroupLoad(params, loadErr)
		}
	}

	tests, err := w.buildTests(params)
	if err != nil {
		return w.failGroupLoad(params, err)
	}

	var envChain []*spectree.Env
	if len(tests) > 0 {
		spec := w.loader.Tree().Spec(tests[0].Spec)
		if f, ok := w.loader.Factory(spec.FactoryName); ok {
			envChain = f.EnvChain()
		}
	}

	snapshots := snapshot.NewStore(w.config.SnapshotDir, w.config.UpdateSnapshots)
	executor := NewExecutor(w.loader.Tree(), w.loader, w.workerIndex, w.variantProject(), envChain, snapshots)

	for _, test := range tests {
		w.stdio.SetCurrentTest(test.ID)
		if err := w.writer.Write(protocol.MethodTestBegin, protocol.TestBeginParams{TestID: test.ID}); err != nil {
			return err
		}
		result := executor.Attempt(test, params.RetryIndex)
		w.stdio.SetCurrentTest(0)
		if err := w.writer.Write(protocol.MethodTestEnd, protocol.TestEndParams{TestID: test.ID, Result: result}); err != nil {
			return err
		}
	}

	if err := executor.Finish(); err != nil {
		return w.writer.Write(protocol.MethodFatalError, protocol.FatalErrorParams{Message: err.Error()})
	}

	return w.writer.Write(protocol.MethodDone, protocol.DoneParams{GroupID: params.GroupID})
}

// buildTests resolves params.TestIDs/SpecOrdinals against the specs this
// worker just loaded (or loaded earlier) for params.File into the
// spectree.Test values the executor runs.
func (w *Worker) buildTests(params protocol.RunParams) ([]*spectree.Test, error) {
	specIDs := w.fileSpecs[params.File]
	if len(params.SpecOrdinals) != len(params.TestIDs) {
		return nil, fmt.Errorf("run(group): %d testIds but %d specOrdinals", len(params.TestIDs), len(params.SpecOrdinals))
	}
	tree := w.loader.Tree()
	tests := make([]*spectree.Test, 0, len(params.TestIDs))
	for i, id := range params.TestIDs {
		ord := params.SpecOrdinals[i]
		if ord < 0 || ord >= len(specIDs) {
			return nil, fmt.Errorf("run(group): spec ordinal %d out of range for %s", ord, params.File)
		}
		specID := specIDs[ord]
		spec := tree.Spec(specID)
		tests = append(tests, &spectree.Test{
			ID:          id,
			Spec:        specID,
			File:        spec.File,
			Line:        spec.Line,
			Col:         spec.Col,
			Title:       spec.Title,
			FullTitle:   tree.FullTitle(specID),
			Variant:     params.Variant,
			VariantTag:  params.VariantTag,
			RepeatIndex: params.RepeatIndex,
			Timeout:     msToDuration(w.config.DefaultTimeoutMS),
			Skipped:     tree.IsSkipped(specID),
		})
	}
	return tests, nil
}

// failGroupLoad synthesizes one failing test for every test in the group,
// per spec.md §7 LoadError policy: "do not abort", just fail the group.
func (w *Worker) failGroupLoad(params protocol.RunParams, loadErr error) error {
	for _, id := range params.TestIDs {
		if err := w.writer.Write(protocol.MethodTestBegin, protocol.TestBeginParams{TestID: id}); err != nil {
			return err
		}
		result := &spectree.TestResult{
			Status: spectree.StatusFailed,
			Error:  &spectree.TestError{Message: fmt.Sprintf("failed to load %s: %v", params.File, loadErr)},
		}
		if err := w.writer.Write(protocol.MethodTestEnd, protocol.TestEndParams{TestID: id, Result: result}); err != nil {
			return err
		}
	}
	return w.writer.Write(protocol.MethodDone, protocol.DoneParams{GroupID: params.GroupID})
}

func (w *Worker) variantProject() string {
	if w.variant == nil {
		return ""
	}
	if p, ok := w.variant["project"].(string); ok {
		return p
	}
	return ""
}
