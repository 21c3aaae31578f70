package registration

import (
	"errors"
	"testing"

	"github.com/rizqme/goderunner/internal/rerr"
	"github.com/rizqme/goderunner/internal/spectree"
)

func TestRegistrationOutsideLoadFails(t *testing.T) {
	l := NewLoader()
	err := l.Describe("suite", func() {})
	var rErr *rerr.Error
	if !errors.As(err, &rErr) || rErr.Kind != rerr.KindRegistrationPhaseViolation {
		t.Fatalf("expected RegistrationPhaseViolation, got %v", err)
	}
}

func TestDescribeAndTestBuildTree(t *testing.T) {
	l := NewLoader()
	l.BeginFile("a.test.js")
	defer l.EndFile()

	var specID spectree.SpecID
	err := l.Describe("outer", func() {
		l.Describe("inner", func() {
			id, terr := l.Test(Loc{File: "a.test.js", Line: 3}, "does a thing", nil, TestOptions{}, "")
			if terr != nil {
				t.Fatalf("Test() error: %v", terr)
			}
			specID = id
		})
	})
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}

	full := l.Tree().FullTitle(specID)
	if full != "outer inner does a thing" {
		t.Errorf("FullTitle = %q", full)
	}
}

func TestHookFromHelperFileRejected(t *testing.T) {
	l := NewLoader()
	l.BeginFile("a.test.js")
	defer l.EndFile()

	err := l.Hook("helper.js", spectree.BeforeEach, Loc{File: "helper.js"}, nil)
	var rErr *rerr.Error
	if !errors.As(err, &rErr) || rErr.Kind != rerr.KindRegistrationPhaseViolation {
		t.Fatalf("expected RegistrationPhaseViolation for cross-file hook, got %v", err)
	}
}

func TestHookFromLoadingFileAccepted(t *testing.T) {
	l := NewLoader()
	l.BeginFile("a.test.js")
	defer l.EndFile()

	if err := l.Hook("a.test.js", spectree.BeforeEach, Loc{File: "a.test.js"}, nil); err != nil {
		t.Fatalf("expected same-file hook registration to succeed, got %v", err)
	}
	suite := l.top()
	if len(suite.BeforeEachHooks) != 1 {
		t.Fatalf("expected 1 beforeEach hook, got %d", len(suite.BeforeEachHooks))
	}
}

func TestOnlyMarksFocus(t *testing.T) {
	l := NewLoader()
	l.BeginFile("a.test.js")
	defer l.EndFile()

	l.DescribeOnly("focused", func() {})
	if !l.Tree().HasAnyFocus() {
		t.Error("expected DescribeOnly to set a focus mark")
	}
}

func TestFactoryEnvChainOrdering(t *testing.T) {
	l := NewLoader()
	root := l.RootFactory()

	var order []string
	baseEnv := &spectree.Env{Name: "base"}
	extEnv := &spectree.Env{Name: "ext"}

	derived := l.Extend("withExt", root, extEnv)
	root.Env = baseEnv // simulate root being bound to an env too

	chain := derived.EnvChain()
	for _, e := range chain {
		order = append(order, e.Name)
	}
	// root-to-leaf storage order is [base, ext]; beforeEach callers must
	// reverse it themselves (see EnvChain doc) to get ext-first.
	if len(chain) != 2 || chain[0].Name != "base" || chain[1].Name != "ext" {
		t.Fatalf("unexpected chain order: %v", order)
	}
}

func TestRunWithRequiresTag(t *testing.T) {
	f := &Factory{}
	if err := f.RunWith("", &spectree.Env{}, 0, nil); err == nil {
		t.Error("expected RunWith with empty tag to fail")
	}
	if err := f.RunWith("chromium", &spectree.Env{}, 0, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(f.Variants()) != 1 {
		t.Errorf("expected 1 variant registered")
	}
}
