package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rizqme/goderunner/internal/spectree"
)

// JSONReporter writes one structured document at OnEnd, mirroring the
// JUnit reporter's totals but as JSON instead of XML — named with the
// "Reporter" suffix to avoid colliding with the stdlib encoding/json
// package in this file's own imports.
type JSONReporter struct {
	Path string // "" or "-" writes to stdout

	order []spectree.TestID
	seen  map[spectree.TestID]*spectree.Test
	start time.Time
}

func NewJSONReporter(path string) *JSONReporter {
	return &JSONReporter{Path: path, seen: make(map[spectree.TestID]*spectree.Test)}
}

type jsonTest struct {
	FullTitle   string                `json:"fullTitle"`
	File        string                `json:"file"`
	VariantTag  string                `json:"variantTag,omitempty"`
	Status      spectree.Status       `json:"status"`
	Ok          bool                  `json:"ok"`
	Flaky       bool                  `json:"flaky"`
	Attempts    int                   `json:"attempts"`
	Duration    float64               `json:"durationSeconds"`
	Error       *spectree.TestError   `json:"error,omitempty"`
	Annotations []spectree.Annotation `json:"annotations,omitempty"`
}

type jsonDoc struct {
	Passed   int        `json:"passed"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Flaky    int        `json:"flaky"`
	Duration float64    `json:"durationSeconds"`
	Tests    []jsonTest `json:"tests"`
}

func (r *JSONReporter) OnBegin(RunConfig, *spectree.Tree) { r.start = time.Now() }

func (r *JSONReporter) OnTestBegin(test *spectree.Test) {
	if _, ok := r.seen[test.ID]; !ok {
		r.seen[test.ID] = test
		r.order = append(r.order, test.ID)
	}
}

func (r *JSONReporter) OnStdout(*spectree.Test, string)                {}
func (r *JSONReporter) OnStderr(*spectree.Test, string)                {}
func (r *JSONReporter) OnTestEnd(*spectree.Test, *spectree.TestResult) {}
func (r *JSONReporter) OnFlaky(*spectree.Test)                        {}
func (r *JSONReporter) OnTimeout()                                     {}

func (r *JSONReporter) OnEnd() {
	doc := jsonDoc{}
	if !r.start.IsZero() {
		doc.Duration = time.Since(r.start).Seconds()
	}
	for _, id := range r.order {
		t := r.seen[id]
		last := t.LastResult()
		if last == nil {
			continue
		}
		jt := jsonTest{
			FullTitle:   t.FullTitle,
			File:        t.File,
			VariantTag:  t.VariantTag,
			Status:      last.Status,
			Ok:          t.Ok(false),
			Flaky:       t.Flaky(),
			Attempts:    len(t.Results),
			Duration:    last.Duration.Seconds(),
			Error:       last.Error,
			Annotations: t.Annotations,
		}
		doc.Tests = append(doc.Tests, jt)

		switch {
		case last.Status == spectree.StatusSkipped:
			doc.Skipped++
		case jt.Flaky:
			doc.Flaky++
		case jt.Ok:
			doc.Passed++
		default:
			doc.Failed++
		}
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "json reporter: marshal: %v\n", err)
		return
	}
	if r.Path == "" || r.Path == "-" {
		fmt.Fprintln(os.Stdout, string(body))
		return
	}
	if err := os.WriteFile(r.Path, body, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "json reporter: write %s: %v\n", r.Path, err)
	}
}
