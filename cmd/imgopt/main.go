// Command imgopt is the CLI entrypoint for the title image optimizer.
//
// It parses flags, layers configuration, and either runs system diagnostics
// (--check) or the image pipeline for one title or all of them, optionally
// watching for changes afterwards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/backmassage/imgopt/internal/check"
	"github.com/backmassage/imgopt/internal/config"
	"github.com/backmassage/imgopt/internal/display"
	"github.com/backmassage/imgopt/internal/imagetool"
	"github.com/backmassage/imgopt/internal/logging"
	"github.com/backmassage/imgopt/internal/pipeline"
	"github.com/backmassage/imgopt/internal/special"
	"github.com/backmassage/imgopt/internal/watch"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr via fmt.
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "imgopt: %v\n", err)
		return 1
	}

	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, os.Args[1:], version); err != nil {
		if errors.Is(err, config.ErrNoTarget) {
			config.PrintUsage(os.Stdout, version)
			return 0
		}
		fmt.Fprintf(os.Stderr, "imgopt: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "imgopt: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "imgopt: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Logger available. All output goes through log from here on.
	display.PrintBanner(os.Stdout)

	// Phase 3: Signal handling. Cancelling stops the pipeline before the
	// next stage or title; commands already running are left to finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, finishing current stage...")
		cancel()
	}()

	if cfg.CheckOnly {
		if !check.RunCheck(ctx, &cfg, log) {
			return 1
		}
		return 0
	}

	log.Info("=== imgopt v%s (%s) ===", version, commit)
	if cfg.ConfigFile != "" {
		log.Info("Config: %s", cfg.ConfigFile)
	}

	// Fail fast if magick or cwebp are unavailable.
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}

	manifest, err := special.LoadOrDefault(cfg.SpecialManifest)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	// Phase 4: Run the pipeline.
	p := pipeline.New(&cfg, log, imagetool.Executor{}, manifest)
	code, titles := runOnce(ctx, &cfg, p)

	if ctx.Err() != nil {
		log.Error("Operation cancelled by user.")
		return 1
	}
	if !cfg.Watch || len(titles) == 0 {
		return code
	}

	// Phase 5: Watch mode until interrupted.
	dirs := make(map[string]string, len(titles))
	for _, t := range titles {
		dirs[t] = cfg.MainDir(t)
	}
	w, err := watch.New(dirs, cfg.WatchDebounce, log, func(ctx context.Context, title string) {
		if _, err := p.RunTitle(ctx, title); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("%v", err)
		}
	})
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	if err := w.Run(ctx); err != nil {
		log.Error("%v", err)
		return 1
	}
	return code
}

// runOnce processes the configured target and returns the exit code plus the
// titles that exist and can be watched.
func runOnce(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) (int, []string) {
	if cfg.All {
		stats, err := p.RunAll(ctx)
		if err != nil || !stats.OK() {
			return 1, watchable(cfg)
		}
		return 0, watchable(cfg)
	}

	stats, err := p.RunTitle(ctx, cfg.Title)
	if errors.Is(err, pipeline.ErrTitleNotFound) {
		return 1, nil
	}
	if err != nil || !stats.Files().OK() {
		return 1, []string{cfg.Title}
	}
	return 0, []string{cfg.Title}
}

func watchable(cfg *config.Config) []string {
	titles, _ := pipeline.FindTitles(cfg.PublicDir, cfg.ThumbSuffix)
	return titles
}
