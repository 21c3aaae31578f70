package spectree

// HookKind distinguishes the four lifecycle buckets a Suite carries.
type HookKind string

const (
	BeforeAll  HookKind = "beforeAll"
	AfterAll   HookKind = "afterAll"
	BeforeEach HookKind = "beforeEach"
	AfterEach  HookKind = "afterEach"
)

// HookFunc is the body of a registered hook. input carries the fixture
// state accumulated so far (for beforeEach/afterEach chains) or the worker
// state bag (for beforeAll/afterAll); the returned map is shallow-merged
// into that bag. Env lifecycle hooks and user-registered hooks share this
// shape so the executor never needs to special-case one or the other.
type HookFunc func(input map[string]interface{}) (map[string]interface{}, error)

// Hook is one registered hook body plus the source location it was
// registered from, used for diagnostics when a hook panics or times out.
type Hook struct {
	Kind HookKind
	Fn   HookFunc
	File string
	Line int
	Col  int
}

// Suite is a node with a title, the source file it was declared in, an
// optional parent, an ordered list of child Suites and Specs, and the four
// hook buckets described in spec.md §3.
type Suite struct {
	ID       SuiteID
	Title    string
	File     string
	Parent   SuiteID
	Children []SuiteID
	SpecIDs  []SpecID

	BeforeAllHooks  []Hook
	AfterAllHooks   []Hook
	BeforeEachHooks []Hook
	AfterEachHooks  []Hook

	Focused bool
	Skipped bool
}

// NewRootSuite creates the file-level root Suite a Loader seeds before
// running a test file's top-level code.
func NewRootSuite(file string) *Suite {
	return &Suite{
		Title:  "",
		File:   file,
		Parent: NoSuite,
	}
}
