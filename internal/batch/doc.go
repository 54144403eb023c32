// Package batch maps a per-file task over a file list with a bounded worker
// pool.
//
// A [Task] is a skip predicate plus an ordered sequence of external
// [Command]s and an optional cleanup action. [Processor.Run] builds one task
// per input path, runs up to Workers of them at a time, and returns a
// [Result] with the aggregate counts. Tasks are independent: a failing task
// never stops the others, and a failing command stops only the rest of its
// own sequence.
//
// The staleness check ([UpToDate], [Fresh]) is mtime based: a destination is
// fresh when it exists and is strictly newer than its source. Content
// changes that do not touch mtime, and clock skew between writers, defeat it.
package batch
