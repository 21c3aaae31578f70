package cli

import "testing"

func TestBuildMultiplexerDefaultsToList(t *testing.T) {
	mux, err := buildMultiplexer(nil, "test-results", false)
	if err != nil {
		t.Fatalf("buildMultiplexer: %v", err)
	}
	// StdioEcho is always prepended, so an empty spec list yields exactly
	// two delegates: the echo passthrough and the default list reporter.
	if len(mux.Delegates) != 2 {
		t.Errorf("expected 2 delegates (stdio echo + list), got %d", len(mux.Delegates))
	}
}

func TestBuildMultiplexerRejectsUnknownReporter(t *testing.T) {
	if _, err := buildMultiplexer([]string{"nope"}, "test-results", false); err == nil {
		t.Error("expected an error for an unrecognized reporter name")
	}
}

func TestBuildMultiplexerRequiresServiceTarget(t *testing.T) {
	if _, err := buildMultiplexer([]string{"service"}, "test-results", false); err == nil {
		t.Error("expected service reporter without a target to fail")
	}
}

func TestBuildMultiplexerAcceptsMultipleReporters(t *testing.T) {
	mux, err := buildMultiplexer([]string{"dot", "json=results.json"}, "test-results", false)
	if err != nil {
		t.Fatalf("buildMultiplexer: %v", err)
	}
	if len(mux.Delegates) != 3 {
		t.Errorf("expected 3 delegates (stdio echo + dot + json), got %d", len(mux.Delegates))
	}
}

func TestResolvePathDefaultsUnderOutputDir(t *testing.T) {
	if got := resolvePath("", "test-results", "results.json"); got != "test-results/results.json" {
		t.Errorf("expected test-results/results.json, got %q", got)
	}
}

func TestResolvePathDashMeansStdout(t *testing.T) {
	if got := resolvePath("-", "test-results", "results.json"); got != "-" {
		t.Errorf("expected \"-\" to pass through, got %q", got)
	}
}

func TestResolvePathAbsoluteTargetIsUntouched(t *testing.T) {
	if got := resolvePath("/tmp/out.json", "test-results", "results.json"); got != "/tmp/out.json" {
		t.Errorf("expected absolute path untouched, got %q", got)
	}
}
