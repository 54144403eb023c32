// Package pipeline runs the per-title image stages and the multi-title
// driver.
//
// A title is a directory under the public dir. [Pipeline.RunTitle] runs four
// batches over it in order: orphan WebP/GIF normalization to PNG, thumbnail
// generation into the sibling thumbnail directory, special images at full
// size, and the two-pass main WebP encode. It finishes with a size report.
// [Pipeline.RunAll] discovers every title and runs them one after another,
// continuing past a title that fails.
//
// The run context is checked before each stage and each title. A stage that
// has started is never interrupted.
package pipeline
