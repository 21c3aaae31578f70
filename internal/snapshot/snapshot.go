// Package snapshot implements testInfo.toMatchSnapshot(value): comparing
// a test's serialized value against a stored baseline, rewriting the
// baseline under --update-snapshots, matching spec.md §6's
// --snapshot-dir/-u CLI options.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store owns one worker's snapshot reads/writes. Dir is the snapshot
// root, relative to each test file's own directory unless absolute —
// "__snapshots__" when --snapshot-dir is unset. Update rewrites a
// mismatched (or missing) entry instead of failing it, per -u.
type Store struct {
	Dir    string
	Update bool

	mu sync.Mutex
}

// NewStore returns a Store rooted at dir ("" defaults to "__snapshots__").
func NewStore(dir string, update bool) *Store {
	if dir == "" {
		dir = "__snapshots__"
	}
	return &Store{Dir: dir, Update: update}
}

// Match compares actual against the stored snapshot for (testFile, key).
// matched is true when actual equals the stored value, when Update just
// rewrote it, or when no prior snapshot existed (first-write always
// passes, the same convention Jest uses). diff is a human-readable
// unified-ish comparison, populated only on a real mismatch.
func (s *Store) Match(testFile, key, actual string) (matched bool, diff string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(testFile)
	entries, err := load(path)
	if err != nil {
		return false, "", fmt.Errorf("snapshot: load %s: %w", path, err)
	}

	existing, ok := entries[key]
	switch {
	case !ok:
		entries[key] = actual
		if err := save(path, entries); err != nil {
			return false, "", fmt.Errorf("snapshot: write %s: %w", path, err)
		}
		return true, "", nil
	case s.Update && existing != actual:
		entries[key] = actual
		if err := save(path, entries); err != nil {
			return false, "", fmt.Errorf("snapshot: write %s: %w", path, err)
		}
		return true, "", nil
	case existing == actual:
		return true, "", nil
	default:
		return false, formatDiff(existing, actual), nil
	}
}

// pathFor resolves the on-disk snapshot file for testFile: Dir beside the
// test file (or absolute, if configured that way), named after the test
// file plus a .snap suffix.
func (s *Store) pathFor(testFile string) string {
	dir := s.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(testFile), dir)
	}
	base := filepath.Base(testFile)
	return filepath.Join(dir, base+".snap")
}

func load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func save(path string, entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range keys {
		encodedKey, _ := json.Marshal(k)
		encodedVal, _ := json.Marshal(entries[k])
		b.WriteString("  ")
		b.Write(encodedKey)
		b.WriteString(": ")
		b.Write(encodedVal)
		if i < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func formatDiff(expected, actual string) string {
	return fmt.Sprintf("- expected\n+ actual\n\n- %s\n+ %s", expected, actual)
}

// Key builds the per-call snapshot identity: a test's full title plus a
// 1-based ordinal distinguishing multiple toMatchSnapshot calls within
// the same test body.
func Key(fullTitle string, ordinal int) string {
	return fmt.Sprintf("%s %d", fullTitle, ordinal)
}
