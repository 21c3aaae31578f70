package rerr

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorFormatsKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindHookFailure, "beforeEach hook failed", cause)

	if !strings.Contains(err.Error(), "hook-failure") {
		t.Errorf("expected error string to mention kind, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected error string to mention cause, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to the cause")
	}
}

func TestCaptureStackNonEmpty(t *testing.T) {
	err := New(KindTestFailure, "x", nil)
	if err.Stack == "" {
		t.Error("expected a non-empty captured stack")
	}
}
