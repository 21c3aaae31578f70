package spectree

// WorkerInfo is passed to an Env's BeforeAll hook.
type WorkerInfo struct {
	WorkerIndex int
	Project     string
}

// Env is a declared environment: up to four lifecycle operations, each of
// which may return a dictionary merged into the per-test or per-worker
// state bag (spec.md §3 "Env declaration"). A nil field means that
// lifecycle stage does nothing for this Env.
type Env struct {
	Name string

	BeforeAll  func(worker *WorkerInfo) (map[string]interface{}, error)
	AfterAll   func(workerState map[string]interface{}) error
	BeforeEach func(info *TestInfo) (map[string]interface{}, error)
	AfterEach  func(testState map[string]interface{}) error
}

// Variant is an (env binding, tag, options) tuple produced by a runWith
// call, per the GLOSSARY. RepeatEach overrides the run config's
// --repeat-each for specs bound to this variant when non-zero.
type Variant struct {
	Tag        string
	Env        *Env
	RepeatEach int
	Options    map[string]interface{}
}
