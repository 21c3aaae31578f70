package reporter

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rizqme/goderunner/internal/spectree"
)

type countingReporter struct {
	begins, ends, testEnds, flakies int
}

func (c *countingReporter) OnBegin(RunConfig, *spectree.Tree)                   { c.begins++ }
func (c *countingReporter) OnTestBegin(*spectree.Test)                         {}
func (c *countingReporter) OnStdout(*spectree.Test, string)                    {}
func (c *countingReporter) OnStderr(*spectree.Test, string)                    {}
func (c *countingReporter) OnTestEnd(*spectree.Test, *spectree.TestResult)     { c.testEnds++ }
func (c *countingReporter) OnFlaky(*spectree.Test)                            { c.flakies++ }
func (c *countingReporter) OnTimeout()                                        {}
func (c *countingReporter) OnEnd()                                            { c.ends++ }

type panickyReporter struct{}

func (panickyReporter) OnBegin(RunConfig, *spectree.Tree)               { panic("boom") }
func (panickyReporter) OnTestBegin(*spectree.Test)                     {}
func (panickyReporter) OnStdout(*spectree.Test, string)                {}
func (panickyReporter) OnStderr(*spectree.Test, string)                {}
func (panickyReporter) OnTestEnd(*spectree.Test, *spectree.TestResult) {}
func (panickyReporter) OnFlaky(*spectree.Test)                         {}
func (panickyReporter) OnTimeout()                                     {}
func (panickyReporter) OnEnd()                                         {}

func TestMultiplexerFansOutToEveryDelegate(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	mux := NewMultiplexer(a, b)

	mux.OnBegin(RunConfig{}, nil)
	mux.OnEnd()

	if a.begins != 1 || b.begins != 1 {
		t.Errorf("expected both delegates to see OnBegin once, got a=%d b=%d", a.begins, b.begins)
	}
	if a.ends != 1 || b.ends != 1 {
		t.Errorf("expected both delegates to see OnEnd once, got a=%d b=%d", a.ends, b.ends)
	}
}

func TestMultiplexerIsolatesAPanickingDelegate(t *testing.T) {
	ok := &countingReporter{}
	mux := NewMultiplexer(panickyReporter{}, ok)

	mux.OnBegin(RunConfig{}, nil)

	if ok.begins != 1 {
		t.Error("expected a panic in one delegate to not prevent the next delegate from running")
	}
}

func TestMultiplexerReportsFlakyOnlyAfterAnEarlierFailureThenPass(t *testing.T) {
	flaky := &countingReporter{}
	mux := NewMultiplexer(flaky)

	test := &spectree.Test{ID: 1}
	failed := &spectree.TestResult{Status: spectree.StatusFailed}
	passed := &spectree.TestResult{Status: spectree.StatusPassed}

	test.Results = append(test.Results, failed)
	mux.OnTestEnd(test, failed)
	if flaky.flakies != 0 {
		t.Errorf("expected no OnFlaky after a lone failed attempt, got %d", flaky.flakies)
	}
	test.Results = append(test.Results, passed)
	mux.OnTestEnd(test, passed)

	if flaky.testEnds != 2 {
		t.Errorf("expected OnTestEnd called once per attempt, got %d", flaky.testEnds)
	}
	if flaky.flakies != 1 {
		t.Errorf("expected OnFlaky once after failure then pass, got %d", flaky.flakies)
	}
}

func TestListOnEndFormatsFailureAsFileColonLine(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	l := NewList()
	l.out = w
	test := &spectree.Test{File: "one-failure.spec.ts", Line: 5, FullTitle: "breaks"}
	result := &spectree.TestResult{Status: spectree.StatusFailed, Error: &spectree.TestError{Message: "boom"}}
	test.Results = []*spectree.TestResult{result}

	l.OnTestEnd(test, result)

	if len(l.failures) != 1 {
		t.Fatalf("expected one recorded failure, got %d", len(l.failures))
	}

	l.OnEnd()
	w.Close()
	out, _ := io.ReadAll(r)
	if !strings.Contains(string(out), "1) one-failure.spec.ts:5") {
		t.Errorf("expected a '1) one-failure.spec.ts:5' summary header, got:\n%s", out)
	}
}

func TestDotOnTestEndPicksSymbolByStatus(t *testing.T) {
	cases := []struct {
		status   spectree.Status
		expected string
	}{
		{spectree.StatusPassed, "."},
		{spectree.StatusSkipped, "-"},
		{spectree.StatusTimedOut, "T"},
	}
	for _, c := range cases {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("pipe: %v", err)
		}
		d := NewDot()
		d.out = w
		test := &spectree.Test{}
		result := &spectree.TestResult{Status: c.status}
		test.Results = []*spectree.TestResult{result}
		d.OnTestEnd(test, result)
		w.Close()
		out, _ := io.ReadAll(r)
		r.Close()
		if d.column != 1 {
			t.Errorf("status %s: expected one column advanced, got %d", c.status, d.column)
		}
		if string(out) != c.expected {
			t.Errorf("status %s: expected symbol %q, got %q", c.status, c.expected, out)
		}
	}
}

func TestJUnitNamesTestsuiteByFileBasename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")
	j := NewJUnit(path, true)

	test := &spectree.Test{ID: 1, File: filepath.Join(dir, "a.test.js"), Title: "one", FullTitle: "one"}
	result := &spectree.TestResult{Status: spectree.StatusPassed}
	test.Results = []*spectree.TestResult{result}

	j.OnTestBegin(test)
	j.OnEnd()

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read junit output: %v", err)
	}
	if !strings.Contains(string(body), `<testsuite name="a.test.js"`) {
		t.Errorf("expected testsuite named by basename, got:\n%s", body)
	}
	if !strings.Contains(string(body), `tests="1" failures="0"`) {
		t.Errorf("expected root totals tests=1 failures=0, got:\n%s", body)
	}
}

func TestJSONReporterCountsFlakyPassedAndFailed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	r := NewJSONReporter(path)

	flaky := &spectree.Test{ID: 1, FullTitle: "flaky"}
	flaky.Results = []*spectree.TestResult{
		{Status: spectree.StatusFailed},
		{Status: spectree.StatusPassed},
	}
	failed := &spectree.Test{ID: 2, FullTitle: "broken"}
	failed.Results = []*spectree.TestResult{{Status: spectree.StatusFailed}}

	r.OnBegin(RunConfig{}, nil)
	r.OnTestBegin(flaky)
	r.OnTestBegin(failed)
	r.OnEnd()

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json output: %v", err)
	}
	var doc struct {
		Passed  int `json:"passed"`
		Failed  int `json:"failed"`
		Flaky   int `json:"flaky"`
		Skipped int `json:"skipped"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal json output: %v\n%s", err, body)
	}
	if doc.Flaky != 1 {
		t.Errorf("expected flaky count 1, got %d", doc.Flaky)
	}
	if doc.Failed != 1 {
		t.Errorf("expected failed count 1, got %d", doc.Failed)
	}
}

func TestStdioEchoSuppressesOutputWhenQuiet(t *testing.T) {
	s := &StdioEcho{Quiet: true}
	// Quiet mode must not panic or attempt to write; there is nothing to
	// assert on os.Stdout itself, so this just exercises the early return.
	s.OnStdout(nil, "should not appear")
	s.OnStderr(nil, "should not appear")
}
