// Package config resolves the run configuration from package.json's
// `gode.testRunner` extension block, an optional goderunner.config.yaml
// sitting next to it, and CLI flags, in that ascending precedence order,
// grounded on the teacher's pkg/config.PackageJSON (FindProjectRoot,
// LoadPackageJSON, default-merge).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// TestRunner is every spec.md §6 CLI option, expressed as a config-file
// block so it can be set once in package.json/yaml instead of repeated
// on every invocation.
type TestRunner struct {
	ForbidOnly     bool     `json:"forbidOnly,omitempty" yaml:"forbidOnly,omitempty"`
	Grep           string   `json:"grep,omitempty" yaml:"grep,omitempty"`
	GlobalTimeout  int64    `json:"globalTimeout,omitempty" yaml:"globalTimeout,omitempty"`
	Workers        int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	MaxFailures    int      `json:"maxFailures,omitempty" yaml:"maxFailures,omitempty"`
	Output         string   `json:"output,omitempty" yaml:"output,omitempty"`
	Quiet          bool     `json:"quiet,omitempty" yaml:"quiet,omitempty"`
	RepeatEach     int      `json:"repeatEach,omitempty" yaml:"repeatEach,omitempty"`
	Reporters      []string `json:"reporter,omitempty" yaml:"reporter,omitempty"`
	Retries        int      `json:"retries,omitempty" yaml:"retries,omitempty"`
	Shard          string   `json:"shard,omitempty" yaml:"shard,omitempty"`
	SnapshotDir    string   `json:"snapshotDir,omitempty" yaml:"snapshotDir,omitempty"`
	TestMatch      []string `json:"testMatch,omitempty" yaml:"testMatch,omitempty"`
	TestIgnore     []string `json:"testIgnore,omitempty" yaml:"testIgnore,omitempty"`
	FixtureMatch   []string `json:"fixtureMatch,omitempty" yaml:"fixtureMatch,omitempty"`
	FixtureIgnore  []string `json:"fixtureIgnore,omitempty" yaml:"fixtureIgnore,omitempty"`
	Timeout        int64    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UpdateSnapshots bool    `json:"updateSnapshots,omitempty" yaml:"updateSnapshots,omitempty"`
}

// GodeConfig mirrors the teacher's extension-block shape (a `gode` key on
// package.json) but carries TestRunner instead of build/permission
// config, since this project's domain is test execution, not a JS
// runtime's module system.
type GodeConfig struct {
	TestRunner TestRunner `json:"testRunner,omitempty"`
}

// PackageJSON is the subset of package.json this runner reads, plus its
// project root (not serialized) for relative path resolution — adapted
// near-verbatim from the teacher's pkg/config.PackageJSON.
type PackageJSON struct {
	Name    string     `json:"name"`
	Version string     `json:"version"`
	Gode    GodeConfig `json:"gode,omitempty"`

	ProjectRoot string `json:"-"`
}

// FindProjectRoot walks up from entrypoint looking for package.json,
// exactly as the teacher's pkg/config.FindProjectRoot does.
func FindProjectRoot(entrypoint string) string {
	dir := entrypoint
	if !filepath.IsAbs(dir) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return entrypoint
}

// Load reads package.json (if present) and an optional
// goderunner.config.yaml beside it, merging in that order beneath
// whatever CLI flags the caller later overlays with Merge.
func Load(projectRoot string) (*PackageJSON, error) {
	pkg := &PackageJSON{Name: "test-project", Version: "0.0.0", ProjectRoot: projectRoot}

	packagePath := filepath.Join(projectRoot, "package.json")
	if data, err := os.ReadFile(packagePath); err == nil {
		// gjson extracts the testRunner block tolerantly first: an
		// unrecognized future field in package.json must never hard-fail
		// config load, only strict struct decoding would do that.
		block := gjson.GetBytes(data, "gode.testRunner")
		if block.Exists() {
			if err := json.Unmarshal([]byte(block.Raw), &pkg.Gode.TestRunner); err != nil {
				return nil, fmt.Errorf("config: parse gode.testRunner: %w", err)
			}
		}
		if name := gjson.GetBytes(data, "name"); name.Exists() {
			pkg.Name = name.String()
		}
		if version := gjson.GetBytes(data, "version"); version.Exists() {
			pkg.Version = version.String()
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read package.json: %w", err)
	}

	yamlPath := filepath.Join(projectRoot, "goderunner.config.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		var fromYAML TestRunner
		if err := yaml.Unmarshal(data, &fromYAML); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
		pkg.Gode.TestRunner = mergeTestRunner(pkg.Gode.TestRunner, fromYAML)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
	}

	return pkg, nil
}

// mergeTestRunner overlays override atop base: any non-zero field in
// override wins.
func mergeTestRunner(base, override TestRunner) TestRunner {
	result := base
	if override.ForbidOnly {
		result.ForbidOnly = true
	}
	if override.Grep != "" {
		result.Grep = override.Grep
	}
	if override.GlobalTimeout != 0 {
		result.GlobalTimeout = override.GlobalTimeout
	}
	if override.Workers != 0 {
		result.Workers = override.Workers
	}
	if override.MaxFailures != 0 {
		result.MaxFailures = override.MaxFailures
	}
	if override.Output != "" {
		result.Output = override.Output
	}
	if override.Quiet {
		result.Quiet = true
	}
	if override.RepeatEach != 0 {
		result.RepeatEach = override.RepeatEach
	}
	if len(override.Reporters) > 0 {
		result.Reporters = override.Reporters
	}
	if override.Retries != 0 {
		result.Retries = override.Retries
	}
	if override.Shard != "" {
		result.Shard = override.Shard
	}
	if override.SnapshotDir != "" {
		result.SnapshotDir = override.SnapshotDir
	}
	if len(override.TestMatch) > 0 {
		result.TestMatch = override.TestMatch
	}
	if len(override.TestIgnore) > 0 {
		result.TestIgnore = override.TestIgnore
	}
	if len(override.FixtureMatch) > 0 {
		result.FixtureMatch = override.FixtureMatch
	}
	if len(override.FixtureIgnore) > 0 {
		result.FixtureIgnore = override.FixtureIgnore
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.UpdateSnapshots {
		result.UpdateSnapshots = true
	}
	return result
}

// Merge overlays cliFlags (as a TestRunner built from parsed flags) atop
// pkg's file-derived config, CLI winning every conflict, then validates
// the result.
func (p *PackageJSON) Merge(cliFlags TestRunner) (TestRunner, error) {
	merged := mergeTestRunner(p.Gode.TestRunner, cliFlags)
	if err := Validate(merged); err != nil {
		return TestRunner{}, err
	}
	return merged, nil
}
