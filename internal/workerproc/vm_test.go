package workerproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rizqme/goderunner/internal/registration"
)

func TestLoadFilesRegistersAPlaceholderSpecForAFailingFileAndContinues(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.test.js")
	bad := filepath.Join(dir, "bad.test.js")
	if err := os.WriteFile(good, []byte("var ok = 1;"), 0644); err != nil {
		t.Fatalf("write good file: %v", err)
	}
	if err := os.WriteFile(bad, []byte("throw new Error('boom');"), 0644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}

	vm := NewVM()
	defer vm.Dispose()
	loader := registration.NewLoader()

	// bad.test.js is loaded first; LoadFiles must not abort before
	// reaching good.test.js.
	LoadFiles(vm, loader, []string{bad, good})

	tree := loader.Tree()
	if len(tree.Specs) != 1 {
		t.Fatalf("expected exactly one placeholder spec for the failing file, got %d", len(tree.Specs))
	}
	if tree.Specs[0].File != bad {
		t.Errorf("expected the placeholder spec attributed to the failing file, got %q", tree.Specs[0].File)
	}
	if tree.Specs[0].Body != nil {
		t.Error("expected the placeholder spec to carry no body")
	}
}
