// Package clog is the runner's own diagnostic logging — distinct from
// reporter output, which is test-result reporting, not operational
// logging. Kept on fmt/os like the rest of the teacher's codebase; no
// example repo in the pack imports a structured-logging library.
package clog

import (
	"fmt"
	"os"
	"time"
)

var quiet = false

// SetQuiet suppresses Info (but not Error) output, for --quiet.
func SetQuiet(v bool) { quiet = v }

func Info(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stdout, "[%s] "+format+"\n", append([]interface{}{timestamp()}, args...)...)
}

func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[%s] "+format+"\n", append([]interface{}{timestamp()}, args...)...)
}

func timestamp() string {
	return time.Now().Format("15:04:05.000")
}
