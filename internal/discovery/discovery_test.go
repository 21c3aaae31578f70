package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWalkPartitionsFixturesAndTestsByDefaultGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.test.js"), "")
	writeFile(t, filepath.Join(root, "b.spec.ts"), "")
	writeFile(t, filepath.Join(root, "helpers.fixture.js"), "")
	writeFile(t, filepath.Join(root, "readme.md"), "")

	result, err := Walk(root, Config{FixtureMatch: []string{"**/*.fixture.js"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(result.Fixtures) != 1 {
		t.Errorf("expected 1 fixture, got %v", result.Fixtures)
	}
	if len(result.Tests) != 2 {
		t.Errorf("expected 2 tests, got %v", result.Tests)
	}
}

func TestWalkSortsEachPartitionLexicographically(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.test.js"), "")
	writeFile(t, filepath.Join(root, "a.test.js"), "")

	result, err := Walk(root, Config{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Tests) != 2 {
		t.Fatalf("expected 2 tests, got %v", result.Tests)
	}
	if filepath.Base(result.Tests[0]) != "a.test.js" || filepath.Base(result.Tests[1]) != "z.test.js" {
		t.Errorf("expected lexicographic order [a.test.js, z.test.js], got %v", result.Tests)
	}
}

func TestWalkHonorsTestIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.test.js"), "")
	writeFile(t, filepath.Join(root, "skip.test.js"), "")

	result, err := Walk(root, Config{TestIgnore: []string{"**/skip.test.js"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Tests) != 1 || filepath.Base(result.Tests[0]) != "a.test.js" {
		t.Errorf("expected only a.test.js after ignoring skip.test.js, got %v", result.Tests)
	}
}

func TestWalkHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "ignored/\n")
	writeFile(t, filepath.Join(root, "a.test.js"), "")
	writeFile(t, filepath.Join(root, "ignored", "b.test.js"), "")

	result, err := Walk(root, Config{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Tests) != 1 {
		t.Errorf("expected gitignored directory excluded, got %v", result.Tests)
	}
}

func TestWalkNameFiltersActLikeSubstringFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "login.test.js"), "")
	writeFile(t, filepath.Join(root, "checkout.test.js"), "")

	result, err := Walk(root, Config{NameFilters: []string{"login"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Tests) != 1 || filepath.Base(result.Tests[0]) != "login.test.js" {
		t.Errorf("expected only login.test.js to match the name filter, got %v", result.Tests)
	}
}

func TestCompileGlobMatchesRecursiveDoubleStarAndSingleSegmentStar(t *testing.T) {
	re, err := compileGlob("**/*.test.js")
	if err != nil {
		t.Fatalf("compileGlob: %v", err)
	}
	for _, path := range []string{"a.test.js", "nested/deep/b.test.js"} {
		if !re.MatchString(path) {
			t.Errorf("expected %q to match **/*.test.js", path)
		}
	}
	if re.MatchString("a.spec.js") {
		t.Error("expected a.spec.js to not match **/*.test.js")
	}
}
