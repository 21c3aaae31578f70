package dispatcher

import "github.com/rizqme/goderunner/internal/spectree"

// Group is the unit of work assigned to one worker: a contiguous run of
// Tests sharing (file, variant, repeatIndex), per spec.md §4.3 — the
// dispatcher's `run(group)` message carries a single scalar repeatIndex
// (spec.md §4.4), so a group never straddles two repeat passes even
// though it may straddle many specs in the same file.
type Group struct {
	ID          string
	File        string
	VariantTag  string
	Variant     map[string]interface{}
	RepeatIndex int
	RetryIndex  int
	Tests       []*spectree.Test
}

// BuildGroups partitions an already-filtered, already-ordered Test slice
// (the generator's output) into Groups, preserving relative order so the
// dispatcher drains them in the same deterministic sequence the generator
// produced.
func BuildGroups(tests []*spectree.Test, newID func() string) []*Group {
	var groups []*Group
	var current *Group

	for _, t := range tests {
		if current == nil || current.File != t.File || current.VariantTag != t.VariantTag || current.RepeatIndex != t.RepeatIndex {
			current = &Group{
				ID:          newID(),
				File:        t.File,
				VariantTag:  t.VariantTag,
				Variant:     t.Variant,
				RepeatIndex: t.RepeatIndex,
			}
			groups = append(groups, current)
		}
		current.Tests = append(current.Tests, t)
	}
	return groups
}

// SplitAt returns a new Group holding g.Tests[from:], keeping the same
// identity fields but a fresh ID — used by crash recovery (spec.md §4.3)
// to re-enqueue a group's unrun remainder for a replacement worker.
func (g *Group) SplitAt(from int, newID func() string) *Group {
	if from >= len(g.Tests) {
		return nil
	}
	return &Group{
		ID:          newID(),
		File:        g.File,
		VariantTag:  g.VariantTag,
		Variant:     g.Variant,
		RepeatIndex: g.RepeatIndex,
		RetryIndex:  g.RetryIndex,
		Tests:       append([]*spectree.Test(nil), g.Tests[from:]...),
	}
}

// SingleTest builds a one-test retry Group for t, at retryIndex, so the
// replacement run gets fresh beforeAll/beforeEach hooks (spec.md §4.3
// "Retries").
func SingleTest(t *spectree.Test, retryIndex int, newID func() string) *Group {
	return &Group{
		ID:          newID(),
		File:        t.File,
		VariantTag:  t.VariantTag,
		Variant:     t.Variant,
		RepeatIndex: t.RepeatIndex,
		RetryIndex:  retryIndex,
		Tests:       []*spectree.Test{t},
	}
}
