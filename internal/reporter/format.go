package reporter

import (
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")

// StripANSI removes terminal color/cursor escape sequences, used by
// reporters (JUnit in particular) when the run is configured to produce
// plain-text artifacts from what may be colorized worker output.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// escapeXML covers the four characters XML text content and attribute
// values require (`&<>"`) and drops control codes XML 1.0 forbids
// outright (everything below 0x20 except tab/newline/carriage-return),
// per spec.md §6's JUnit formatting rule.
func escapeXML(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cdata wraps s as a CDATA section, escaping any literal "]]>" sequence
// that would otherwise terminate the section early.
func cdata(s string) string {
	s = strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
	return "<![CDATA[" + s + "]]>"
}
