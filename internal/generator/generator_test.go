package generator

import (
	"testing"

	"github.com/rizqme/goderunner/internal/registration"
	"github.com/rizqme/goderunner/internal/spectree"
)

func build(t *testing.T) (*registration.Loader, spectree.SpecID, spectree.SpecID) {
	t.Helper()
	l := registration.NewLoader()
	l.BeginFile("a.test.js")
	var b, e spectree.SpecID
	l.Describe("suite", func() {
		id, _ := l.Test(registration.Loc{File: "a.test.js"}, "b", nil, registration.TestOptions{}, "")
		b = id
		id2, _ := l.Test(registration.Loc{File: "a.test.js"}, "e", nil, registration.TestOptions{}, "")
		e = id2
	})
	l.EndFile()
	return l, b, e
}

func TestGenerateDefaultRepeatOnce(t *testing.T) {
	l, _, _ := build(t)
	tests, err := Generate(l.Tree(), l, Config{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("expected 2 tests, got %d", len(tests))
	}
}

func TestGenerateRepeatEach(t *testing.T) {
	l, _, _ := build(t)
	tests, err := Generate(l.Tree(), l, Config{RepeatEach: 3})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(tests) != 6 {
		t.Fatalf("expected 6 tests (2 specs x 3 repeats), got %d", len(tests))
	}
}

func TestFocusDropsUnfocusedSiblings(t *testing.T) {
	l := registration.NewLoader()
	l.BeginFile("a.test.js")
	l.Describe("a", func() {
		l.Test(registration.Loc{File: "a.test.js"}, "b", nil, registration.TestOptions{Focused: true}, "")
		l.Test(registration.Loc{File: "a.test.js"}, "c", nil, registration.TestOptions{}, "")
	})
	l.Test(registration.Loc{File: "a.test.js"}, "e", nil, registration.TestOptions{}, "")
	l.EndFile()

	tests, err := Generate(l.Tree(), l, Config{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(tests) != 1 || tests[0].Title != "b" {
		t.Fatalf("expected only focused test 'b', got %+v", titles(tests))
	}
}

func TestForbidOnlyAborts(t *testing.T) {
	l := registration.NewLoader()
	l.BeginFile("a.test.js")
	l.Test(registration.Loc{File: "a.test.js"}, "b", nil, registration.TestOptions{Focused: true}, "")
	l.EndFile()

	_, err := Generate(l.Tree(), l, Config{ForbidOnly: true})
	if err != ErrForbidOnly {
		t.Fatalf("expected ErrForbidOnly, got %v", err)
	}
}

func TestGrepBareSubstring(t *testing.T) {
	l, _, _ := build(t)
	tests, err := Generate(l.Tree(), l, Config{Grep: "suite b"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(tests) != 1 || tests[0].Title != "b" {
		t.Fatalf("expected only 'b' to match grep, got %v", titles(tests))
	}
}

func TestGrepRegexLiteral(t *testing.T) {
	l, _, _ := build(t)
	tests, err := Generate(l.Tree(), l, Config{Grep: "/^suite [be]$/i"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("expected both tests to match regex, got %v", titles(tests))
	}
}

func TestShardIsDisjointCover(t *testing.T) {
	l := registration.NewLoader()
	l.BeginFile("a.test.js")
	for i := 0; i < 10; i++ {
		l.Test(registration.Loc{File: "a.test.js"}, "t", nil, registration.TestOptions{}, "")
	}
	l.EndFile()

	const total = 3
	seen := map[spectree.TestID]bool{}
	for current := 1; current <= total; current++ {
		tests, err := Generate(l.Tree(), l, Config{Shard: &Shard{Current: current, Total: total}})
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		for _, test := range tests {
			if seen[test.ID] {
				t.Fatalf("test %d assigned to more than one shard", test.ID)
			}
			seen[test.ID] = true
		}
	}
	if len(seen) != 10 {
		t.Fatalf("expected all 10 tests covered across shards, got %d", len(seen))
	}
}

func TestNameFilterMatchesFilePath(t *testing.T) {
	l := registration.NewLoader()
	l.BeginFile("dir/a.test.js")
	l.Test(registration.Loc{File: "dir/a.test.js"}, "x", nil, registration.TestOptions{}, "")
	l.EndFile()

	l2 := registration.NewLoader()
	l2.BeginFile("dir/b.test.js")
	l2.Test(registration.Loc{File: "dir/b.test.js"}, "y", nil, registration.TestOptions{}, "")
	l2.EndFile()

	tests, err := Generate(l.Tree(), l, Config{NameFilters: []string{"a.test"}})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(tests) != 1 {
		t.Fatalf("expected 1 test matching name filter, got %d", len(tests))
	}
}

// TestShardAppliesBeforeNameFilters pins spec.md §4.2's documented filter
// order (grep, then shard, then name-filters): shard's modulo partition
// must be computed over the full filtered-by-grep list, before name
// filters remove anything, or combining --shard with a positional path
// filter silently reindexes the partition.
func TestShardAppliesBeforeNameFilters(t *testing.T) {
	l := registration.NewLoader()
	l.BeginFile("a.test.js")
	l.Test(registration.Loc{File: "a.test.js"}, "a0", nil, registration.TestOptions{}, "")
	l.Test(registration.Loc{File: "a.test.js"}, "a1", nil, registration.TestOptions{}, "")
	l.EndFile()
	l.BeginFile("m.test.js")
	l.Test(registration.Loc{File: "m.test.js"}, "m0", nil, registration.TestOptions{}, "")
	l.Test(registration.Loc{File: "m.test.js"}, "m1", nil, registration.TestOptions{}, "")
	l.Test(registration.Loc{File: "m.test.js"}, "m2", nil, registration.TestOptions{}, "")
	l.Test(registration.Loc{File: "m.test.js"}, "m3", nil, registration.TestOptions{}, "")
	l.EndFile()

	tests, err := Generate(l.Tree(), l, Config{
		Shard:       &Shard{Current: 1, Total: 3},
		NameFilters: []string{"m.test"},
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	// Over the unfiltered 6-test list (a0,a1,m0,m1,m2,m3), shard 1/3 keeps
	// indices 0 and 3: a0 and m1. Name-filtering for "m.test" then drops
	// a0, leaving only m1. Applying the name filter first (the bug) would
	// instead reindex to [m0,m1,m2,m3] and shard that down to [m0,m3].
	if len(tests) != 1 || tests[0].Title != "m1" {
		t.Fatalf("expected only m1 once shard runs before name filters, got %v", titles(tests))
	}
}

func titles(tests []*spectree.Test) []string {
	var out []string
	for _, t := range tests {
		out = append(out, t.Title)
	}
	return out
}
