package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchWritesBaselineOnFirstCall(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "goderunner_snapshot_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	testFile := filepath.Join(tmpDir, "sample.spec.js")
	store := NewStore(filepath.Join(tmpDir, "__snapshots__"), false)

	matched, diff, err := store.Match(testFile, Key("renders widget", 1), "hello")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if !matched {
		t.Errorf("Expected first write to match, got diff: %s", diff)
	}

	snapPath := filepath.Join(tmpDir, "__snapshots__", "sample.spec.js.snap")
	if _, err := os.Stat(snapPath); err != nil {
		t.Errorf("Expected snapshot file at %s, stat failed: %v", snapPath, err)
	}
}

func TestMatchComparesAgainstStoredValue(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "goderunner_snapshot_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	testFile := filepath.Join(tmpDir, "sample.spec.js")
	store := NewStore(filepath.Join(tmpDir, "__snapshots__"), false)

	if _, _, err := store.Match(testFile, Key("renders widget", 1), "hello"); err != nil {
		t.Fatalf("Match returned error: %v", err)
	}

	matched, _, err := store.Match(testFile, Key("renders widget", 1), "hello")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if !matched {
		t.Errorf("Expected identical value to match")
	}

	matched, diff, err := store.Match(testFile, Key("renders widget", 1), "goodbye")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if matched {
		t.Errorf("Expected changed value to fail without --update-snapshots")
	}
	if diff == "" {
		t.Errorf("Expected a non-empty diff on mismatch")
	}
}

func TestMatchUpdateRewritesChangedValue(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "goderunner_snapshot_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	testFile := filepath.Join(tmpDir, "sample.spec.js")
	writeStore := NewStore(filepath.Join(tmpDir, "__snapshots__"), false)
	if _, _, err := writeStore.Match(testFile, Key("renders widget", 1), "hello"); err != nil {
		t.Fatalf("Match returned error: %v", err)
	}

	updateStore := NewStore(filepath.Join(tmpDir, "__snapshots__"), true)
	matched, _, err := updateStore.Match(testFile, Key("renders widget", 1), "goodbye")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if !matched {
		t.Errorf("Expected --update-snapshots to accept a changed value")
	}

	matched, _, err = writeStore.Match(testFile, Key("renders widget", 1), "goodbye")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if !matched {
		t.Errorf("Expected rewritten baseline to match the new value on a later run")
	}
}

func TestKeyDistinguishesCallsWithinOneTest(t *testing.T) {
	a := Key("renders widget", 1)
	b := Key("renders widget", 2)
	if a == b {
		t.Errorf("Expected distinct keys for distinct ordinals, got %q twice", a)
	}
}

func TestMatchDefaultsDirWhenEmpty(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "goderunner_snapshot_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	testFile := filepath.Join(tmpDir, "sample.spec.js")
	store := NewStore("", false)
	if _, _, err := store.Match(testFile, Key("x", 1), "y"); err != nil {
		t.Fatalf("Match returned error: %v", err)
	}

	snapPath := filepath.Join(tmpDir, "__snapshots__", "sample.spec.js.snap")
	if _, err := os.Stat(snapPath); err != nil {
		t.Errorf("Expected default __snapshots__ dir at %s, stat failed: %v", snapPath, err)
	}
}
