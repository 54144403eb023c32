package imagetool

import (
	"fmt"
	"strings"

	"github.com/backmassage/imgopt/internal/batch"
)

// stderrTailLines bounds how much of a failing tool's stderr is kept.
const stderrTailLines = 5

// ExecError reports a command that could not be started or exited non-zero.
type ExecError struct {
	Command  batch.Command
	ExitCode int    // -1 when the process failed to launch.
	Stderr   string // Last few lines of stderr, trimmed.
	Err      error
}

func (e *ExecError) Error() string {
	var b strings.Builder
	if e.ExitCode < 0 {
		fmt.Fprintf(&b, "%s: failed to start: %v", e.Command.Name, e.Err)
	} else {
		fmt.Fprintf(&b, "%s: exit status %d", e.Command.Name, e.ExitCode)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error { return e.Err }

// tail returns the last n non-empty lines of s joined by "; ".
func tail(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
