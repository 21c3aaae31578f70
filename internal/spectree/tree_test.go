package spectree

import "testing"

func TestFullTitleJoinsAncestors(t *testing.T) {
	tree := NewTree()
	root := tree.AddSuite(NewRootSuite("a.test.js"))
	child := tree.AddSuite(&Suite{Title: "outer", Parent: root})
	grand := tree.AddSuite(&Suite{Title: "inner", Parent: child})

	spec := &Spec{Suite: grand, Title: "does a thing"}
	id := tree.AddSpec(spec)

	got := tree.FullTitle(id)
	want := "outer inner does a thing"
	if got != want {
		t.Errorf("FullTitle() = %q, want %q", got, want)
	}
}

func TestIsFocusedPropagatesFromAncestor(t *testing.T) {
	tree := NewTree()
	root := tree.AddSuite(NewRootSuite("a.test.js"))
	focused := tree.AddSuite(&Suite{Title: "only-suite", Parent: root, Focused: true})

	inFocused := tree.AddSpec(&Spec{Suite: focused, Title: "b"})
	outside := tree.AddSpec(&Spec{Suite: root, Title: "e"})

	if !tree.IsFocused(inFocused) {
		t.Error("expected spec inside focused suite to be focused")
	}
	if tree.IsFocused(outside) {
		t.Error("expected sibling spec outside focused suite to not be focused")
	}
}

func TestIsSkippedPropagatesFromAncestor(t *testing.T) {
	tree := NewTree()
	root := tree.AddSuite(NewRootSuite("a.test.js"))
	skipped := tree.AddSuite(&Suite{Title: "skip-me", Parent: root, Skipped: true})
	spec := tree.AddSpec(&Spec{Suite: skipped, Title: "x"})

	if !tree.IsSkipped(spec) {
		t.Error("expected spec under skipped suite to be skipped")
	}
}

func TestHasAnyFocus(t *testing.T) {
	tree := NewTree()
	root := tree.AddSuite(NewRootSuite("a.test.js"))
	if tree.HasAnyFocus() {
		t.Fatal("fresh tree should have no focus marks")
	}
	tree.AddSpec(&Spec{Suite: root, Title: "x", Focused: true})
	if !tree.HasAnyFocus() {
		t.Error("expected HasAnyFocus to detect the focused spec")
	}
}

func TestOkDerivation(t *testing.T) {
	cases := []struct {
		name           string
		status         Status
		expectedToFail bool
		want           bool
	}{
		{"passed, not expected to fail", StatusPassed, false, true},
		{"passed, expected to fail", StatusPassed, true, false},
		{"failed, not expected to fail", StatusFailed, false, false},
		{"failed, expected to fail", StatusFailed, true, true},
		{"skipped regardless", StatusSkipped, true, true},
		{"timedOut never ok", StatusTimedOut, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			test := &Test{Results: []*TestResult{{Status: c.status}}}
			if got := test.Ok(c.expectedToFail); got != c.want {
				t.Errorf("Ok() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestFlakyRequiresEarlierFailureThenPass(t *testing.T) {
	test := &Test{Results: []*TestResult{
		{Status: StatusFailed},
		{Status: StatusPassed},
	}}
	if !test.Flaky() {
		t.Error("expected flaky test to be detected")
	}

	allPassed := &Test{Results: []*TestResult{{Status: StatusPassed}}}
	if allPassed.Flaky() {
		t.Error("single passing attempt should not be flaky")
	}
}
