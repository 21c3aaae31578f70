// Package generator expands a loaded spec tree into the flat, ordered list
// of concrete Tests the dispatcher will run, applying the filters of
// spec.md §4.2 in the order it specifies.
package generator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rizqme/goderunner/internal/registration"
	"github.com/rizqme/goderunner/internal/spectree"
)

// ErrForbidOnly is returned when --forbid-only is set and the tree carries
// any focus mark.
var ErrForbidOnly = errors.New("forbid-only: a test or suite is marked .only")

// Shard selects one disjoint slice of the globally-ordered test list.
// Current is 1-based, matching the CLI's `--shard c/t` spelling.
type Shard struct {
	Current int
	Total   int
}

// Config bundles every spec.md §4.2/§6 option the generator consumes.
type Config struct {
	RepeatEach   int
	Grep         string
	Shard        *Shard
	ForbidOnly   bool
	NameFilters  []string // substrings matched against Test.File
	DefaultTimeout int64  // milliseconds; spectree.Test.Timeout is derived from this
}

// FactoryLookup resolves a Spec.FactoryName to the Factory it was
// registered through. *registration.Loader satisfies this.
type FactoryLookup interface {
	Factory(name string) (*registration.Factory, bool)
}

// Generate produces the flat Test list for tree under cfg. Run order
// within the returned slice is the dispatch order reporters and the
// dispatcher both rely on.
func Generate(tree *spectree.Tree, factories FactoryLookup, cfg Config) ([]*spectree.Test, error) {
	if cfg.ForbidOnly && tree.HasAnyFocus() {
		return nil, ErrForbidOnly
	}

	specOrder := orderedSpecIDs(tree)

	// specOrdinals gives each Spec's 0-based position among its own
	// file's Specs in declaration (registration) order, computed over the
	// UNFILTERED tree so it matches how a worker numbers specs when it
	// loads the file fresh (the worker never applies focus/skip/grep —
	// those are generator-only concerns).
	specOrdinals := make(map[spectree.SpecID]int, len(specOrder))
	{
		perFile := make(map[string]int)
		for _, spec := range tree.Specs {
			specOrdinals[spec.ID] = perFile[spec.File]
			perFile[spec.File]++
		}
	}

	hasFocus := tree.HasAnyFocus()
	var expanded []*spectree.Test
	nextID := int64(1)

	for _, id := range specOrder {
		if hasFocus && !tree.IsFocused(id) {
			continue
		}
		spec := tree.Spec(id)
		skipped := tree.IsSkipped(id)
		specOrdinal := specOrdinals[id]

		variants := resolveVariants(spec, factories)
		fullTitle := tree.FullTitle(id)

		for _, v := range variants {
			repeat := v.RepeatEach
			if repeat <= 0 {
				repeat = cfg.RepeatEach
			}
			if repeat <= 0 {
				repeat = 1
			}
			for r := 0; r < repeat; r++ {
				t := &spectree.Test{
					ID:          spectree.TestID(nextID),
					Spec:        id,
					File:        spec.File,
					Line:        spec.Line,
					Col:         spec.Col,
					Title:       spec.Title,
					FullTitle:   fullTitle,
					Variant:     v.Options,
					VariantTag:  v.Tag,
					RepeatIndex: r,
					SpecOrdinal: specOrdinal,
					Timeout:     msToDuration(cfg.DefaultTimeout),
					Skipped:     skipped,
				}
				nextID++
				spec.TestIDs = append(spec.TestIDs, t.ID)
				expanded = append(expanded, t)
			}
		}
	}

	filtered, err := applyGrep(expanded, cfg.Grep)
	if err != nil {
		return nil, err
	}
	filtered = applyShard(filtered, cfg.Shard)
	filtered = applyNameFilters(filtered, cfg.NameFilters)

	return filtered, nil
}

// orderedSpecIDs walks the tree depth-first pre-order, Suites ordered by
// file path first and declaration order second, per spec.md §4.2.
func orderedSpecIDs(tree *spectree.Tree) []spectree.SpecID {
	roots := tree.Roots()
	sort.SliceStable(roots, func(i, j int) bool {
		return tree.Suite(roots[i]).File < tree.Suite(roots[j]).File
	})

	var order []spectree.SpecID
	var walk func(id spectree.SuiteID)
	walk = func(id spectree.SuiteID) {
		suite := tree.Suite(id)
		order = append(order, suite.SpecIDs...)
		for _, child := range suite.Children {
			walk(child)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return order
}

func resolveVariants(spec *spectree.Spec, factories FactoryLookup) []spectree.Variant {
	f, ok := factories.Factory(spec.FactoryName)
	if !ok {
		return []spectree.Variant{{Tag: "", Options: map[string]interface{}{}}}
	}
	variants := f.Variants()
	if len(variants) == 0 {
		return []spectree.Variant{{Tag: "", Options: map[string]interface{}{}}}
	}
	return variants
}

func applyGrep(tests []*spectree.Test, grep string) ([]*spectree.Test, error) {
	if grep == "" {
		return tests, nil
	}
	matcher, err := compileGrep(grep)
	if err != nil {
		return nil, fmt.Errorf("invalid --grep pattern: %w", err)
	}
	var out []*spectree.Test
	for _, t := range tests {
		if matcher(t.FullTitle) {
			out = append(out, t)
		}
	}
	return out, nil
}

// compileGrep accepts either a bare substring or a `/pattern/flags`
// regex literal, per spec.md §4.2 step 3 and §8's testable property.
func compileGrep(grep string) (func(string) bool, error) {
	if len(grep) >= 2 && grep[0] == '/' {
		if idx := strings.LastIndex(grep, "/"); idx > 0 {
			pattern := grep[1:idx]
			flags := grep[idx+1:]
			if flags == "" || isRegexFlags(flags) {
				if strings.Contains(flags, "i") {
					pattern = "(?i)" + pattern
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, err
				}
				return re.MatchString, nil
			}
		}
	}
	return func(title string) bool { return strings.Contains(title, grep) }, nil
}

func isRegexFlags(flags string) bool {
	for _, c := range flags {
		if c != 'i' && c != 'g' && c != 'm' && c != 's' {
			return false
		}
	}
	return true
}

func applyNameFilters(tests []*spectree.Test, filters []string) []*spectree.Test {
	if len(filters) == 0 {
		return tests
	}
	var out []*spectree.Test
	for _, t := range tests {
		for _, f := range filters {
			if strings.Contains(t.File, f) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func applyShard(tests []*spectree.Test, shard *Shard) []*spectree.Test {
	if shard == nil || shard.Total <= 1 {
		return tests
	}
	current0 := shard.Current - 1
	var out []*spectree.Test
	for i, t := range tests {
		if i%shard.Total == current0 {
			out = append(out, t)
		}
	}
	return out
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
