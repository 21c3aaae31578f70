// Package spectree holds the in-memory tree of Suites, Specs, Tests and
// TestResults produced by loading a test file, and the invariants that bind
// them together.
//
// Suites and Specs refer to each other (a Suite lists its child Specs, a
// Spec points back at its owning Suite); rather than holding Go pointers in
// both directions we key everything by a stable id into the Tree's arenas,
// so "parent" is an index, never an owning reference.
package spectree

// SuiteID identifies a Suite within a Tree.
type SuiteID int

// SpecID identifies a Spec within a Tree.
type SpecID int

// NoSuite is the Parent value of a file's root Suite.
const NoSuite SuiteID = -1

// Tree is the arena holding every Suite and Spec discovered while loading a
// set of test files. One Tree is built per run; Tests are expanded from it
// by the generator package, not stored here.
type Tree struct {
	Suites []*Suite
	Specs  []*Spec
}

// NewTree creates an empty arena.
func NewTree() *Tree {
	return &Tree{}
}

// AddSuite appends a new Suite and returns its id.
func (t *Tree) AddSuite(s *Suite) SuiteID {
	id := SuiteID(len(t.Suites))
	s.ID = id
	t.Suites = append(t.Suites, s)
	if s.Parent != NoSuite {
		parent := t.Suite(s.Parent)
		parent.Children = append(parent.Children, id)
	}
	return id
}

// AddSpec appends a new Spec, registers it on its owning Suite, and returns
// its id.
func (t *Tree) AddSpec(s *Spec) SpecID {
	id := SpecID(len(t.Specs))
	s.ID = id
	t.Specs = append(t.Specs, s)
	suite := t.Suite(s.Suite)
	suite.SpecIDs = append(suite.SpecIDs, id)
	return id
}

// Suite resolves an id to its Suite. Panics on an out-of-range id, which
// would indicate a bug in the registration API rather than bad user input.
func (t *Tree) Suite(id SuiteID) *Suite {
	return t.Suites[id]
}

// Spec resolves an id to its Spec.
func (t *Tree) Spec(id SpecID) *Spec {
	return t.Specs[id]
}

// Roots returns the ids of every Suite with no parent, in declaration order.
// There is one root Suite per loaded file.
func (t *Tree) Roots() []SuiteID {
	var roots []SuiteID
	for _, s := range t.Suites {
		if s.Parent == NoSuite {
			roots = append(roots, s.ID)
		}
	}
	return roots
}

// Ancestors returns the chain of Suites from the root down to (and
// including) id.
func (t *Tree) Ancestors(id SuiteID) []*Suite {
	var chain []*Suite
	for cur := id; cur != NoSuite; {
		s := t.Suite(cur)
		chain = append([]*Suite{s}, chain...)
		cur = s.Parent
	}
	return chain
}

// FullTitle joins the titles of every ancestor Suite and the Spec itself
// with a single space, per spec.
func (t *Tree) FullTitle(id SpecID) string {
	spec := t.Spec(id)
	title := ""
	for _, s := range t.Ancestors(spec.Suite) {
		if s.Title == "" {
			continue
		}
		title += s.Title + " "
	}
	return title + spec.Title
}

// IsFocused reports whether the Spec is itself focused or sits under a
// focused Suite ancestor.
func (t *Tree) IsFocused(id SpecID) bool {
	spec := t.Spec(id)
	if spec.Focused {
		return true
	}
	for _, s := range t.Ancestors(spec.Suite) {
		if s.Focused {
			return true
		}
	}
	return false
}

// IsSkipped reports whether the Spec or any ancestor Suite is skipped.
func (t *Tree) IsSkipped(id SpecID) bool {
	spec := t.Spec(id)
	if spec.Skipped {
		return true
	}
	for _, s := range t.Ancestors(spec.Suite) {
		if s.Skipped {
			return true
		}
	}
	return false
}

// HasAnyFocus reports whether any Suite or Spec anywhere in the tree carries
// a focus mark. Used to implement --forbid-only.
func (t *Tree) HasAnyFocus() bool {
	for _, s := range t.Suites {
		if s.Focused {
			return true
		}
	}
	for _, s := range t.Specs {
		if s.Focused {
			return true
		}
	}
	return false
}
