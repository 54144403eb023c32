// Package term provides color state and terminal detection.
//
// The color helpers are package-level functions because several packages
// (logging, display, pipeline) color fragments of their output. [Configure]
// sets the global state once during startup; when colors are disabled every
// helper returns its input unchanged.
package term

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/backmassage/imgopt/internal/config"
)

// Color helpers. Each formats its arguments like fmt.Sprint.
var (
	Red     = color.New(color.FgHiRed).SprintFunc()
	Green   = color.New(color.FgHiGreen).SprintFunc()
	Yellow  = color.New(color.FgHiYellow).SprintFunc()
	Blue    = color.New(color.FgHiBlue).SprintFunc()
	Cyan    = color.New(color.FgHiCyan).SprintFunc()
	Magenta = color.New(color.FgHiMagenta).SprintFunc()
	Gray    = color.New(color.FgHiBlack).SprintFunc()

	// Bold section styles.
	TitleStyle   = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	RunStyle     = color.New(color.FgHiGreen, color.Bold).SprintFunc()
	SectionStyle = color.New(color.FgHiMagenta, color.Bold).SprintFunc()
	ReportStyle  = color.New(color.FgHiBlue, color.Bold).SprintFunc()
)

// Configure resolves the color mode and sets the global color state. Call
// once during startup (from [logging.NewLogger]).
func Configure(mode config.ColorMode) {
	color.NoColor = !resolve(mode)
}

// Enabled reports whether colors are currently active.
func Enabled() bool { return !color.NoColor }

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(os.Stdout) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
