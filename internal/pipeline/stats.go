package pipeline

import "github.com/backmassage/imgopt/internal/batch"

// TitleStats holds the outcome of one title's stages and its size report.
type TitleStats struct {
	Title string

	Orphans    batch.Result
	Thumbnails batch.Result
	Special    batch.Result
	Main       batch.Result

	MainWebPBytes  int64
	MainWebPCount  int
	ThumbWebPBytes int64
	ThumbWebPCount int
}

// Files returns the combined counts of all four stages.
func (s *TitleStats) Files() batch.Result {
	return s.Orphans.Add(s.Thumbnails).Add(s.Special).Add(s.Main)
}

// RunStats aggregates a multi-title run.
type RunStats struct {
	Titles    int
	Processed int // Titles that completed without a title-level error.
	Files     batch.Result
}

// OK reports whether every title was processed and every file succeeded.
func (s *RunStats) OK() bool {
	return s.Processed == s.Titles && s.Files.OK()
}

func (s *RunStats) add(t TitleStats) {
	s.Files = s.Files.Add(t.Files())
}
