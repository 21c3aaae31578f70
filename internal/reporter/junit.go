package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rizqme/goderunner/internal/spectree"
)

// JUnit writes the `<testsuites>` document spec.md §6 describes: one
// `<testsuite>` per test file, one `<testcase>` per Test, failures as
// CDATA, stdout/stderr as `<system-out>`/`<system-err>`. There is no
// encoding/xml-based writer in the pack (or a natural way to emit CDATA
// through it — the stdlib marshaler always escapes text content), so the
// document is hand-assembled with the escaping/CDATA helpers in
// format.go, the same way dedicated JUnit writers in the wild do it.
type JUnit struct {
	Path      string // "" or "-" writes to stdout
	StripANSI bool

	order []spectree.TestID
	seen  map[spectree.TestID]*spectree.Test
}

func NewJUnit(path string, stripANSI bool) *JUnit {
	return &JUnit{Path: path, StripANSI: stripANSI, seen: make(map[spectree.TestID]*spectree.Test)}
}

func (j *JUnit) OnBegin(RunConfig, *spectree.Tree) {}

func (j *JUnit) OnTestBegin(test *spectree.Test) {
	if _, ok := j.seen[test.ID]; !ok {
		j.seen[test.ID] = test
		j.order = append(j.order, test.ID)
	}
}

func (j *JUnit) OnStdout(*spectree.Test, string) {}
func (j *JUnit) OnStderr(*spectree.Test, string) {}
func (j *JUnit) OnTestEnd(*spectree.Test, *spectree.TestResult) {}
func (j *JUnit) OnFlaky(*spectree.Test) {}
func (j *JUnit) OnTimeout()             {}

func (j *JUnit) OnEnd() {
	bySuite := map[string][]*spectree.Test{}
	var suiteOrder []string
	for _, id := range j.order {
		t := j.seen[id]
		if _, ok := bySuite[t.File]; !ok {
			suiteOrder = append(suiteOrder, t.File)
		}
		bySuite[t.File] = append(bySuite[t.File], t)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	totalTests, totalFailures, totalSkipped, totalErrors := 0, 0, 0, 0
	var totalTime time.Duration
	var suites strings.Builder

	for _, file := range suiteOrder {
		tests := bySuite[file]
		suiteFailures, suiteSkipped, suiteErrors := 0, 0, 0
		var suiteTime time.Duration
		var cases strings.Builder

		for _, t := range tests {
			result := t.LastResult()
			if result == nil {
				continue
			}
			suiteTime += result.Duration
			switch result.Status {
			case spectree.StatusSkipped:
				suiteSkipped++
			case spectree.StatusFailed:
				if t.Ok(false) {
					// expectedToFail inversion: a failed attempt that was
					// expected to fail is a pass, not a JUnit failure.
				} else {
					suiteFailures++
				}
			case spectree.StatusTimedOut:
				suiteErrors++
			}
			cases.WriteString(j.testCase(t, result))
		}

		totalTests += len(tests)
		totalFailures += suiteFailures
		totalSkipped += suiteSkipped
		totalErrors += suiteErrors
		totalTime += suiteTime

		fmt.Fprintf(&suites,
			"  <testsuite name=%q tests=\"%d\" failures=\"%d\" skipped=\"%d\" errors=\"%d\" time=\"%.3f\">\n",
			escapeXML(filepath.Base(file)), len(tests), suiteFailures, suiteSkipped, suiteErrors, suiteTime.Seconds())
		suites.WriteString(cases.String())
		suites.WriteString("  </testsuite>\n")
	}

	fmt.Fprintf(&b,
		"<testsuites tests=\"%d\" failures=\"%d\" skipped=\"%d\" errors=\"%d\" time=\"%.3f\">\n",
		totalTests, totalFailures, totalSkipped, totalErrors, totalTime.Seconds())
	b.WriteString(suites.String())
	b.WriteString("</testsuites>\n")

	j.write(b.String())
}

func (j *JUnit) testCase(t *spectree.Test, result *spectree.TestResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    <testcase name=%q classname=%q time=\"%.3f\">\n",
		escapeXML(t.Title), escapeXML(t.File), result.Duration.Seconds())

	switch {
	case result.Status == spectree.StatusSkipped:
		b.WriteString("      <skipped/>\n")
	case result.Status == spectree.StatusFailed && !t.Ok(false):
		b.WriteString("      <failure message=\"" + escapeXML(j.errMessage(result)) + "\">")
		b.WriteString(cdata(j.errBody(result)))
		b.WriteString("</failure>\n")
	case result.Status == spectree.StatusTimedOut:
		b.WriteString("      <error message=\"" + escapeXML(j.errMessage(result)) + "\">")
		b.WriteString(cdata(j.errBody(result)))
		b.WriteString("</error>\n")
	}

	for _, a := range t.Annotations {
		fmt.Fprintf(&b, "      <property name=%q value=%q/>\n", escapeXML(a.Type), escapeXML(a.Description))
	}

	if len(result.Stdout) > 0 {
		b.WriteString("      <system-out>" + cdata(j.clean(strings.Join(result.Stdout, ""))) + "</system-out>\n")
	}
	if len(result.Stderr) > 0 {
		b.WriteString("      <system-err>" + cdata(j.clean(strings.Join(result.Stderr, ""))) + "</system-err>\n")
	}

	b.WriteString("    </testcase>\n")
	return b.String()
}

func (j *JUnit) errMessage(result *spectree.TestResult) string {
	if result.Error == nil {
		return "failed"
	}
	return result.Error.Message
}

func (j *JUnit) errBody(result *spectree.TestResult) string {
	if result.Error == nil {
		return ""
	}
	body := result.Error.Message
	if result.Error.Stack != "" {
		body += "\n" + result.Error.Stack
	}
	return j.clean(body)
}

func (j *JUnit) clean(s string) string {
	if j.StripANSI {
		return StripANSI(s)
	}
	return s
}

func (j *JUnit) write(doc string) {
	if j.Path == "" || j.Path == "-" {
		fmt.Fprint(os.Stdout, doc)
		return
	}
	if err := os.WriteFile(j.Path, []byte(doc), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "junit reporter: write %s: %v\n", j.Path, err)
	}
}
