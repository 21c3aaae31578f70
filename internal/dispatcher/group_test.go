package dispatcher

import (
	"testing"

	"github.com/rizqme/goderunner/internal/spectree"
)

func newIDSeq() func() string {
	n := 0
	return func() string {
		n++
		return string(rune('a' + n - 1))
	}
}

func TestBuildGroupsSplitsOnFileVariantAndRepeatIndex(t *testing.T) {
	tests := []*spectree.Test{
		{ID: 1, File: "a.test.js", VariantTag: "", RepeatIndex: 0},
		{ID: 2, File: "a.test.js", VariantTag: "", RepeatIndex: 0},
		{ID: 3, File: "a.test.js", VariantTag: "chromium", RepeatIndex: 0},
		{ID: 4, File: "b.test.js", VariantTag: "chromium", RepeatIndex: 0},
		{ID: 5, File: "b.test.js", VariantTag: "chromium", RepeatIndex: 1},
	}

	groups := BuildGroups(tests, newIDSeq())
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}
	if len(groups[0].Tests) != 2 {
		t.Errorf("expected first group to hold both a.test.js default-variant tests, got %d", len(groups[0].Tests))
	}
	for i, want := range []string{"a.test.js", "a.test.js", "b.test.js", "b.test.js"} {
		if groups[i].File != want {
			t.Errorf("group %d: expected file %s, got %s", i, want, groups[i].File)
		}
	}
	if groups[3].RepeatIndex != 1 {
		t.Errorf("expected last group's RepeatIndex 1, got %d", groups[3].RepeatIndex)
	}
}

func TestBuildGroupsPreservesOrder(t *testing.T) {
	tests := []*spectree.Test{
		{ID: 1, File: "z.test.js"},
		{ID: 2, File: "a.test.js"},
	}
	groups := BuildGroups(tests, newIDSeq())
	if groups[0].File != "z.test.js" || groups[1].File != "a.test.js" {
		t.Error("BuildGroups must preserve the generator's input order, not re-sort")
	}
}

func TestSplitAtReturnsNilWhenNothingRemains(t *testing.T) {
	g := &Group{Tests: []*spectree.Test{{ID: 1}, {ID: 2}}}
	if got := g.SplitAt(2, newIDSeq()); got != nil {
		t.Errorf("expected nil when from == len(Tests), got %+v", got)
	}
}

func TestSplitAtKeepsIdentityFieldsWithFreshID(t *testing.T) {
	g := &Group{ID: "orig", File: "a.test.js", VariantTag: "v", RepeatIndex: 2, RetryIndex: 1,
		Tests: []*spectree.Test{{ID: 1}, {ID: 2}, {ID: 3}}}

	split := g.SplitAt(1, newIDSeq())
	if split == nil {
		t.Fatal("expected a non-nil remainder group")
	}
	if split.ID == g.ID {
		t.Error("expected SplitAt to mint a fresh ID, not reuse the original")
	}
	if split.File != g.File || split.VariantTag != g.VariantTag || split.RepeatIndex != g.RepeatIndex || split.RetryIndex != g.RetryIndex {
		t.Error("expected SplitAt to carry over every identity field unchanged")
	}
	if len(split.Tests) != 2 || split.Tests[0].ID != 2 || split.Tests[1].ID != 3 {
		t.Errorf("expected remainder tests [2,3], got %+v", split.Tests)
	}
}

func TestSingleTestBuildsOneTestGroupAtRetryIndex(t *testing.T) {
	test := &spectree.Test{ID: 7, File: "a.test.js", VariantTag: "v", RepeatIndex: 3}
	g := SingleTest(test, 2, newIDSeq())
	if len(g.Tests) != 1 || g.Tests[0] != test {
		t.Fatalf("expected a single-test group wrapping the given test, got %+v", g.Tests)
	}
	if g.RetryIndex != 2 {
		t.Errorf("expected RetryIndex 2, got %d", g.RetryIndex)
	}
	if g.File != test.File || g.VariantTag != test.VariantTag || g.RepeatIndex != test.RepeatIndex {
		t.Error("expected SingleTest to inherit the test's file/variant/repeat identity")
	}
}
