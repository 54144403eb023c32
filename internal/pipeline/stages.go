package pipeline

import (
	"os"
	"path/filepath"

	"github.com/backmassage/imgopt/internal/batch"
	"github.com/backmassage/imgopt/internal/imagetool"
	"github.com/backmassage/imgopt/internal/special"
)

// title is the resolved layout of one title during a run.
type title struct {
	name     string
	mainDir  string
	thumbDir string
	special  special.Set
}

// orphanBatch normalizes WebP/GIF files that have no PNG or JPEG original.
func (p *Pipeline) orphanBatch(files []string) batch.Batch {
	return batch.Batch{
		Kind:           "orphan images",
		Files:          files,
		NoFilesMessage: "No orphan images to convert",
		Build: func(path string) batch.Task {
			dest := withExt(path, ".png")
			return batch.Task{
				Source:         path,
				Dest:           dest,
				Skip:           func() bool { return hasOriginal(path) },
				SkipReason:     "(has original)",
				Commands:       imagetool.Orphan(p.cfg.Tools, path, dest),
				Cleanup:        batch.RemoveDest(dest),
				SuccessMessage: "Converted orphan image",
				FailMessage:    "Failed to convert orphan image",
			}
		},
	}
}

// thumbnailBatch writes a small WebP for every source image, mirroring the
// main directory's layout under the thumbnail directory.
func (p *Pipeline) thumbnailBatch(t *title, files []string) batch.Batch {
	return batch.Batch{
		Kind:           "thumbnails",
		Files:          files,
		NoFilesMessage: "No images found for thumbnail generation",
		Build: func(path string) batch.Task {
			dest := thumbPath(t, path)
			return batch.Task{
				Source:         path,
				Dest:           dest,
				Skip:           func() bool { return batch.UpToDate(p.cfg.Force, path, dest) },
				SkipReason:     "thumbnail (up to date)",
				Prepare:        func() error { return os.MkdirAll(filepath.Dir(dest), 0o755) },
				Commands:       imagetool.Thumbnail(p.cfg.Tools, p.cfg.Thumb, path, dest),
				Cleanup:        batch.RemoveDest(dest),
				SuccessMessage: "Generated thumbnail",
				FailMessage:    "Failed to generate thumbnail",
			}
		},
	}
}

// specialBatch encodes the title's listed images at full size. Listed names
// that are missing on disk fail their task.
func (p *Pipeline) specialBatch(t *title) batch.Batch {
	names := t.special.Sorted()
	files := make([]string, len(names))
	for i, n := range names {
		files[i] = filepath.Join(t.mainDir, n)
	}
	return batch.Batch{
		Kind:           "special images",
		Files:          files,
		NoFilesMessage: `No special images defined for title "` + t.name + `"`,
		Build: func(path string) batch.Task {
			dest := withExt(path, ".webp")
			return batch.Task{
				Source:         path,
				Dest:           dest,
				Skip:           func() bool { return batch.UpToDate(p.cfg.Force, path, dest) },
				SkipReason:     "special (up to date)",
				Commands:       imagetool.Special(p.cfg.Tools, p.cfg.SpecialQuality, path, dest),
				Cleanup:        batch.RemoveDest(dest),
				SuccessMessage: "Processed special image",
				FailMessage:    "Failed to process special image",
			}
		},
	}
}

// mainBatch runs the two-pass encode for every non-special source image.
func (p *Pipeline) mainBatch(t *title, sources []string) batch.Batch {
	var files []string
	for _, s := range sources {
		if !t.special.Contains(filepath.Base(s)) {
			files = append(files, s)
		}
	}
	return batch.Batch{
		Kind:           "main images",
		Files:          files,
		NoFilesMessage: "No main images to process",
		Build: func(path string) batch.Task {
			dest := withExt(path, ".webp")
			return batch.Task{
				Source:         path,
				Dest:           dest,
				Skip:           func() bool { return batch.UpToDate(p.cfg.Force, path, dest) },
				SkipReason:     "(up to date)",
				Commands:       imagetool.Main(p.cfg.Tools, p.cfg.Main, path, dest),
				Cleanup:        batch.RemoveDest(dest),
				SuccessMessage: "Optimized main image",
				FailMessage:    "Failed to optimize main image",
			}
		},
	}
}

// hasOriginal reports whether a PNG or JPEG sibling of path exists.
func hasOriginal(path string) bool {
	for _, ext := range sourceExts {
		if batch.Exists(withExt(path, ext)) {
			return true
		}
	}
	return false
}

// thumbPath maps a source under the main dir to its thumbnail destination.
func thumbPath(t *title, path string) string {
	rel, err := filepath.Rel(t.mainDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.Join(t.thumbDir, withExt(rel, ".webp"))
}
