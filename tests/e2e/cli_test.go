// Package e2e drives the built goderunner binary through the
// command-line scenarios of spec.md §8, the way
// andyballingall-json-schema-manager's cmd/jsm/integration_test.go
// builds jsm once and exercises it with rogpeppe/go-internal/testscript
// .txtar scripts, rather than the teacher's manual exec.Command-based
// tests/e2e/cli_test.go.
package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

var (
	binDir    string
	errBuild  error
	buildOnce sync.Once
)

func ensureBinary() error {
	buildOnce.Do(func() {
		tmpDir, err := os.MkdirTemp("", "goderunner-e2e-*")
		if err != nil {
			errBuild = fmt.Errorf("create temp dir: %w", err)
			return
		}

		name := "goderunner"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		binPath := filepath.Join(tmpDir, name)

		cmd := exec.Command("go", "build", "-o", binPath, "../../cmd/goderunner")
		if out, err := cmd.CombinedOutput(); err != nil {
			errBuild = fmt.Errorf("build goderunner: %w\n%s", err, out)
			return
		}
		binDir = tmpDir
	})
	return errBuild
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestScripts(t *testing.T) {
	if err := ensureBinary(); err != nil {
		t.Fatal(err)
	}

	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
		Setup: func(env *testscript.Env) error {
			env.Vars = append(env.Vars, "PATH="+binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
			return nil
		},
	})
}
