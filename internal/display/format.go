// Package display formats human-facing output: the banner, section rules,
// and byte sizes.
package display

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Widths of the section rules. Runs and titles get the wide rule, stages
// and reports the narrow one.
const (
	WideRule   = 80
	NarrowRule = 60
)

// Rule returns a horizontal rule of n '=' characters.
func Rule(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("=", n)
}

// Section returns the three lines of a boxed header: rule, indented text, rule.
func Section(text string, width int) [3]string {
	r := Rule(width)
	return [3]string{r, "  " + text, r}
}

// FormatSize returns a human-readable IEC size ("1.5 KiB", "700 MiB").
// Negative values are reported as zero.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
