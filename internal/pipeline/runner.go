package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/backmassage/imgopt/internal/batch"
	"github.com/backmassage/imgopt/internal/config"
	"github.com/backmassage/imgopt/internal/display"
	"github.com/backmassage/imgopt/internal/special"
	"github.com/backmassage/imgopt/internal/term"
)

var (
	// ErrTitleNotFound is returned (wrapped with the path) when a title's
	// main directory does not exist.
	ErrTitleNotFound = errors.New("title directory does not exist")

	// ErrNoTitles is returned by RunAll when the public dir holds no titles.
	ErrNoTitles = errors.New("no titles found")
)

// Pipeline holds everything a run needs. It is safe to call RunTitle for
// different titles concurrently; the caller must not overlap runs of the
// same title.
type Pipeline struct {
	cfg      *config.Config
	log      batch.Logger
	manifest *special.Manifest
	proc     *batch.Processor
}

// New returns a Pipeline that executes commands through runner.
func New(cfg *config.Config, log batch.Logger, runner batch.Runner, manifest *special.Manifest) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		manifest: manifest,
		proc:     batch.NewProcessor(runner, cfg.Workers, log),
	}
}

// RunTitle runs all four stages for one title and logs its size report.
// A missing main directory returns ErrTitleNotFound; a cancelled ctx stops
// before the next stage and returns ctx.Err(). Per-file failures are only
// reported through the returned stats.
func (p *Pipeline) RunTitle(ctx context.Context, name string) (TitleStats, error) {
	stats := TitleStats{Title: name}
	p.section(term.TitleStyle, fmt.Sprintf("Processing Title: %q", name), display.WideRule)

	t, err := p.openTitle(name)
	if err != nil {
		p.log.Error("%s", term.Red(fmt.Sprintf("Error processing %q: %v", name, err)))
		return stats, err
	}

	sources, err := findImages(t.mainDir, sourceExts...)
	if err != nil {
		p.log.Error("Cannot scan %s: %v", t.mainDir, err)
		return stats, err
	}
	webps, _ := p.scan(t.mainDir, webpExts...)

	p.section(term.RunStyle, "Processing: "+name, display.WideRule)
	p.log.Info("Title: %s", term.Cyan(name))
	p.log.Info("Force: %s", term.Yellow(strconv.FormatBool(p.cfg.Force)))
	p.log.Info("Main directory: %s", term.Blue(t.mainDir))
	p.log.Info("Thumbnails directory: %s", term.Blue(t.thumbDir))
	p.log.Info("Source images found: %s", term.Cyan(len(sources)))
	p.log.Info("Existing WebP files: %s", term.Cyan(len(webps)))

	stages := []struct {
		header string
		result *batch.Result
		build  func() (batch.Batch, bool)
	}{
		{"Converting orphan images to PNG", &stats.Orphans, func() (batch.Batch, bool) {
			orphans, err := p.scan(t.mainDir, orphanExts...)
			if err != nil {
				return batch.Batch{}, false
			}
			return p.orphanBatch(orphans), true
		}},
		{"Generating thumbnails", &stats.Thumbnails, func() (batch.Batch, bool) {
			return p.thumbnailBatch(t, rescan(t, sources)), true
		}},
		{"Processing special images", &stats.Special, func() (batch.Batch, bool) {
			if t.special.Len() == 0 {
				p.log.Info("%s", term.Yellow("No special images for title: "+name))
				return batch.Batch{}, false
			}
			return p.specialBatch(t), true
		}},
		{"Creating optimized WebP versions", &stats.Main, func() (batch.Batch, bool) {
			return p.mainBatch(t, rescan(t, sources)), true
		}},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			p.log.Warn("Interrupted before %q", st.header)
			return stats, err
		}
		b, ok := st.build()
		if ok {
			p.section(term.SectionStyle, st.header, display.NarrowRule)
			*st.result = p.proc.Run(ctx, b)
		}
		p.log.Info("")
	}

	p.sizeReport(t, &stats)
	return stats, nil
}

// RunAll discovers every title under the public dir and runs them in order.
// It returns ErrNoTitles when there are none; otherwise a title-level error
// is logged and the run continues with the next title.
func (p *Pipeline) RunAll(ctx context.Context) (RunStats, error) {
	var stats RunStats

	titles, err := FindTitles(p.cfg.PublicDir, p.cfg.ThumbSuffix)
	if err != nil {
		return stats, fmt.Errorf("cannot list %s: %w", p.cfg.PublicDir, err)
	}
	if len(titles) == 0 {
		p.log.Error("%s", term.Red("No anime titles found in "+p.cfg.PublicDir+" directory"))
		return stats, ErrNoTitles
	}
	stats.Titles = len(titles)

	p.log.Info("%s", term.Cyan("Found titles:"))
	for _, name := range titles {
		p.log.Info("%s", term.Cyan("  - "+name))
	}
	p.log.Info("%s", term.Yellow(fmt.Sprintf("Force mode: %t", p.cfg.Force)))
	p.log.Info("%s", term.Yellow(fmt.Sprintf("CPU count: %d", p.cfg.Workers)))

	var sources, webps int
	for _, name := range titles {
		dir := p.cfg.MainDir(name)
		s, _ := p.scan(dir, sourceExts...)
		w, _ := p.scan(dir, webpExts...)
		sources += len(s)
		webps += len(w)
	}
	p.log.Info("%s", term.Cyan(fmt.Sprintf("Source images found: %d", sources)))
	p.log.Info("%s", term.Cyan(fmt.Sprintf("Existing WebP files: %d", webps)))
	p.log.Info("")

	for _, name := range titles {
		if err := ctx.Err(); err != nil {
			p.log.Warn("Interrupted, %d title(s) not processed", stats.Titles-stats.Processed)
			p.logTitleSummary(&stats)
			return stats, err
		}
		ts, err := p.RunTitle(ctx, name)
		stats.add(ts)
		if err == nil {
			stats.Processed++
		} else if ctx.Err() != nil {
			p.logTitleSummary(&stats)
			return stats, err
		}
		p.log.Info("")
	}

	p.logTitleSummary(&stats)
	return stats, nil
}

// rescan lists the title's sources again, since orphan conversion adds PNGs.
// It falls back to the earlier listing when the walk fails.
func rescan(t *title, earlier []string) []string {
	files, err := findImages(t.mainDir, sourceExts...)
	if err != nil {
		return earlier
	}
	return files
}

func (p *Pipeline) logTitleSummary(stats *RunStats) {
	line := fmt.Sprintf("Successfully processed %d/%d titles!", stats.Processed, stats.Titles)
	if stats.Processed == stats.Titles {
		p.log.Info("%s", term.Green(line))
	} else {
		p.log.Info("%s", term.Yellow(line))
	}
}

// openTitle resolves the title's directories and special set, creating the
// thumbnail directory when needed.
func (p *Pipeline) openTitle(name string) (*title, error) {
	t := &title{
		name:     name,
		mainDir:  p.cfg.MainDir(name),
		thumbDir: p.cfg.ThumbDir(name),
		special:  p.manifest.For(name),
	}
	fi, err := os.Stat(t.mainDir)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrTitleNotFound, t.mainDir)
	}
	if err := os.MkdirAll(t.thumbDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create thumbnail directory: %w", err)
	}
	return t, nil
}

func (p *Pipeline) sizeReport(t *title, stats *TitleStats) {
	p.section(term.ReportStyle, "Size Report", display.NarrowRule)

	mainWebP, _ := p.scan(t.mainDir, webpExts...)
	thumbWebP, _ := p.scan(t.thumbDir, webpExts...)

	stats.MainWebPCount = len(mainWebP)
	stats.MainWebPBytes = totalSize(mainWebP)
	stats.ThumbWebPCount = len(thumbWebP)
	stats.ThumbWebPBytes = totalSize(thumbWebP)

	p.log.Info("Main images size (WebP versions): %s", term.Green(display.FormatSize(stats.MainWebPBytes)))
	p.log.Info("Thumbnails size (WebP): %s", term.Green(display.FormatSize(stats.ThumbWebPBytes)))
	p.log.Info("Main WebP files count: %s", term.Cyan(stats.MainWebPCount))
	p.log.Info("Thumbnail WebP files count: %s", term.Cyan(stats.ThumbWebPCount))
}

// scan is FindImages with the error logged as a warning.
func (p *Pipeline) scan(dir string, exts ...string) ([]string, error) {
	files, err := findImages(dir, exts...)
	if err != nil {
		p.log.Warn("Cannot scan %s: %v", dir, err)
	}
	return files, err
}

func (p *Pipeline) section(style func(a ...interface{}) string, text string, width int) {
	for _, line := range display.Section(text, width) {
		p.log.Info("%s", style(line))
	}
}
