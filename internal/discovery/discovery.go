// Package discovery walks a test directory and sorts files into
// fixtures and tests, honoring .gitignore, the match/ignore glob pairs,
// and substring name filters of spec.md §6.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/monochromegane/go-gitignore"
)

// Config bundles the discovery-relevant CLI options.
type Config struct {
	TestMatch     []string
	TestIgnore    []string
	FixtureMatch  []string
	FixtureIgnore []string
	NameFilters   []string
}

// Result is the partitioned, load-ordered file list: Fixtures must be
// loaded strictly before Tests, per spec.md §6.
type Result struct {
	Fixtures []string
	Tests    []string
}

var defaultTestMatch = []string{"**/*.test.js", "**/*.spec.js", "**/*.test.ts", "**/*.spec.ts"}

// Walk performs a gitignore-aware recursive walk of root, partitioning
// matched files into Result.Fixtures and Result.Tests, each in
// lexicographic path order.
func Walk(root string, cfg Config) (*Result, error) {
	testMatch := cfg.TestMatch
	if len(testMatch) == 0 {
		testMatch = defaultTestMatch
	}

	testMatchers, err := compileAll(testMatch)
	if err != nil {
		return nil, fmt.Errorf("discovery: --test-match: %w", err)
	}
	testIgnore, err := compileAll(cfg.TestIgnore)
	if err != nil {
		return nil, fmt.Errorf("discovery: --test-ignore: %w", err)
	}
	fixtureMatchers, err := compileAll(cfg.FixtureMatch)
	if err != nil {
		return nil, fmt.Errorf("discovery: --fixture-match: %w", err)
	}
	fixtureIgnore, err := compileAll(cfg.FixtureIgnore)
	if err != nil {
		return nil, fmt.Errorf("discovery: --fixture-ignore: %w", err)
	}

	ignorer := loadGitignore(root)

	var fixtures, tests []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if rel == ".git" || (ignorer != nil && ignorer.Match(path, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignorer != nil && ignorer.Match(path, false) {
			return nil
		}
		if !matchesNameFilters(rel, cfg.NameFilters) {
			return nil
		}
		switch {
		case matchesAny(rel, fixtureMatchers) && !matchesAny(rel, fixtureIgnore):
			fixtures = append(fixtures, path)
		case matchesAny(rel, testMatchers) && !matchesAny(rel, testIgnore):
			tests = append(tests, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(fixtures)
	sort.Strings(tests)
	return &Result{Fixtures: fixtures, Tests: tests}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := compileGlob(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(rel string, matchers []*regexp.Regexp) bool {
	for _, m := range matchers {
		if m.MatchString(rel) {
			return true
		}
	}
	return false
}

func matchesNameFilters(rel string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if strings.Contains(rel, f) {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *gitignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ig, err := gitignore.NewGitIgnore(path)
	if err != nil {
		return nil
	}
	return ig
}
