// Package check provides system diagnostics (--check mode) and pre-pipeline
// dependency validation (CheckDeps) for magick and cwebp.
package check

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/backmassage/imgopt/internal/config"
	"github.com/backmassage/imgopt/internal/imagetool"
)

// Sentinel errors returned by CheckDeps when a required tool is missing.
var (
	ErrMagickNotFound = errors.New("magick not found on PATH")
	ErrCwebpNotFound  = errors.New("cwebp not found on PATH")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// RunCheck prints where each tool resolves and its version line. It is
// informational only and reports whether every tool was usable.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := checkTool(ctx, log, "ImageMagick", cfg.Tools.Magick)
	ok = checkTool(ctx, log, "cwebp", cfg.Tools.Cwebp) && ok

	log.Info("Public directory: %s", cfg.PublicDir)
	if cfg.ConfigFile != "" {
		log.Info("Config file: %s", cfg.ConfigFile)
	}
	return ok
}

// checkTool resolves bin on PATH and logs its version string.
func checkTool(ctx context.Context, log Logger, label, bin string) bool {
	path, err := lookPath(bin)
	if err != nil {
		log.Error("%s not found (%s)", label, bin)
		return false
	}
	log.Debug("%s resolved to %s", bin, path)

	v, err := imagetool.Executor{}.Version(ctx, path)
	if err != nil {
		log.Warn("%s found but -version failed: %v", label, err)
		return true
	}
	log.Success("%s: %s", label, v)
	return true
}

// CheckDeps is the pre-pipeline validation: both configured binaries must be
// on PATH. Returns a sentinel error, wrapped with the binary name, on failure.
func CheckDeps(cfg *config.Config) error {
	if _, err := lookPath(cfg.Tools.Magick); err != nil {
		return fmt.Errorf("%w (%s)", ErrMagickNotFound, cfg.Tools.Magick)
	}
	if _, err := lookPath(cfg.Tools.Cwebp); err != nil {
		return fmt.Errorf("%w (%s)", ErrCwebpNotFound, cfg.Tools.Cwebp)
	}
	return nil
}
