package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension sets. Matching is case-insensitive.
var (
	sourceExts = []string{".png", ".jpg", ".jpeg"}
	orphanExts = []string{".webp", ".gif"}
	webpExts   = []string{".webp"}
)

// findImages is swapped in tests.
var findImages = FindImages

// FindTitles returns the sorted names of the title directories under public.
// Thumbnail directories (names ending in suffix), hidden entries, and
// index.html are excluded. A missing public directory yields no titles.
func FindTitles(public, suffix string) ([]string, error) {
	entries, err := os.ReadDir(public)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var titles []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() ||
			strings.HasSuffix(name, suffix) ||
			strings.HasPrefix(name, ".") ||
			name == "index.html" {
			continue
		}
		titles = append(titles, name)
	}
	sort.Strings(titles)
	return titles, nil
}

// FindImages walks dir and returns the lexically sorted paths of regular
// files whose extension is one of exts.
func FindImages(dir string, exts ...string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	seen := make(map[string]bool)
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !want[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// withExt replaces path's extension with ext.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// totalSize sums the sizes of paths, ignoring files that vanished.
func totalSize(paths []string) int64 {
	var n int64
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil {
			n += fi.Size()
		}
	}
	return n
}
