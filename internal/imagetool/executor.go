package imagetool

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/backmassage/imgopt/internal/batch"
)

// Executor runs commands as child processes. The zero value is ready to use.
type Executor struct{}

var _ batch.Runner = Executor{}

// Run starts cmd and waits for it. Stdout is discarded; stderr is captured
// and its tail attached to the returned *ExecError on failure.
func (Executor) Run(ctx context.Context, cmd batch.Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)

	var stderrBuf bytes.Buffer
	c.Stderr = &stderrBuf

	err := c.Run()
	if err == nil {
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ExecError{
		Command:  cmd,
		ExitCode: code,
		Stderr:   tail(stderrBuf.String(), stderrTailLines),
		Err:      err,
	}
}

// Version returns the first line of "<name> -version". Both magick and
// cwebp accept the flag.
func (Executor) Version(ctx context.Context, name string) (string, error) {
	out, err := exec.CommandContext(ctx, name, "-version").Output()
	if err != nil {
		return "", err
	}
	first := strings.TrimSpace(string(out))
	if idx := strings.Index(first, "\n"); idx > 0 {
		first = strings.TrimSpace(first[:idx])
	}
	return first, nil
}
