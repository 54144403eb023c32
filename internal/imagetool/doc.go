// Package imagetool builds and executes magick and cwebp commands.
//
// The builders ([Orphan], [Thumbnail], [Special], [Main]) return the command
// sequence for one file as [batch.Command] values. [Executor] runs them as
// child processes, capturing stderr so a failure can be reported with the
// tool's own diagnostic.
package imagetool
