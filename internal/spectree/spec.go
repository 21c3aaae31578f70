package spectree

// TestFunc is a Spec's body. input is the fully merged fixture state (env
// beforeAll/beforeEach plus user beforeEach results); info exposes the
// mutators (skip/fail/slow/setTimeout) a running test can invoke on itself.
type TestFunc func(input map[string]interface{}, info *TestInfo) error

// Spec is a leaf inside a Suite: one author-declared test intent. A Spec is
// expanded into one or more Tests (one per bound variant × repeat) by the
// generator.
type Spec struct {
	ID    SpecID
	Suite SuiteID

	Title  string
	File   string
	Line   int
	Col    int

	Body TestFunc

	Focused        bool
	Skipped        bool
	ExpectedToFail bool

	// FactoryName names the (possibly derived, via declare/extend) test
	// factory this Spec was registered through, resolved by the
	// generator against the registration package's factory registry to
	// find its bound Variants.
	FactoryName string

	// TestIDs is populated by the generator once this Spec has been
	// expanded; it is empty immediately after registration.
	TestIDs []TestID
}
