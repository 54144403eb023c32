package batch

import (
	"context"
	"os"
	"strings"
	"time"
)

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
}

// String renders the command shell-style for logs. Arguments containing
// spaces are quoted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Runner executes a single command. A nil error means the process started
// and exited with status 0.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// Task is the unit of work for one input file. It is built by a [Batch]
// factory at dispatch time and not modified afterwards.
type Task struct {
	Source string
	Dest   string

	// Skip reports whether the task is already satisfied. Nil means never.
	Skip       func() bool
	SkipReason string

	// Commands run in order; the first failure aborts the rest.
	Commands []Command

	// Cleanup runs after a failure, only when Dest exists at that point.
	Cleanup func() error

	// Prepare runs once before the first command (e.g. create Dest's
	// parent directory). An error fails the task without running commands.
	Prepare func() error

	SuccessMessage string
	FailMessage    string
}

// RemoveDest returns a cleanup action deleting path.
func RemoveDest(path string) func() error {
	return func() error {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
}

// Fresh is the staleness decision: with force off, a destination that
// exists and is strictly newer than its source needs no work.
func Fresh(force, destExists bool, srcMod, destMod time.Time) bool {
	return !force && destExists && destMod.After(srcMod)
}

// UpToDate stats src and dest and applies [Fresh]. A source that cannot be
// stat'ed is never up to date, so the commands run and fail visibly.
func UpToDate(force bool, src, dest string) bool {
	if force {
		return false
	}
	di, err := os.Stat(dest)
	if err != nil {
		return false
	}
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	return Fresh(force, true, si.ModTime(), di.ModTime())
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
