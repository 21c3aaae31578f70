// Package slug turns a test title into a filesystem-safe path segment.
package slug

import "strings"

// Slug lowercases s and replaces every run of whitespace with a single
// dash. spec.md §9's Open Questions flags the original implementation's
// `.replace(' ', '-')` as replacing only the first space; this replaces
// all of them.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		case isSafe(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func isSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
}
