// Package config holds runtime configuration: defaults, CLI flag parsing,
// config-file and environment layering, and validation. Defaults match the
// legacy optimize-images script so existing asset trees rebuild identically.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Encode holds resize and quality parameters for one output kind.
type Encode struct {
	Width   int `mapstructure:"width"`   // Max width; smaller images are never upscaled.
	Quality int `mapstructure:"quality"` // 0-100.
}

// Tools names the external binaries. Overridable for non-standard installs.
type Tools struct {
	Magick string `mapstructure:"magick"`
	Cwebp  string `mapstructure:"cwebp"`
}

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then layered by [ParseFlags] (config file, environment, flags) before being
// passed by pointer to packages that need it.
type Config struct {
	// Target selection (flags and positional arg only).
	Title string `mapstructure:"-"`
	All   bool   `mapstructure:"-"`

	// Layout.
	PublicDir       string `mapstructure:"public_dir"`       // Default: "./public".
	ThumbSuffix     string `mapstructure:"thumb_suffix"`     // Default: "-thumbnails".
	SpecialManifest string `mapstructure:"special_manifest"` // Empty: embedded default.

	// Encoding.
	Main           Encode `mapstructure:"main"`            // Default: 800px, q50.
	Thumb          Encode `mapstructure:"thumbnail"`       // Default: 100px, q10.
	SpecialQuality int    `mapstructure:"special_quality"` // Default: 80.
	Tools          Tools  `mapstructure:"tools"`

	// Behavior.
	Force         bool          `mapstructure:"force"`
	Workers       int           `mapstructure:"workers"` // Default: logical CPU count.
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"` // Default: 500ms.

	// Display and logging.
	Verbose   bool      `mapstructure:"verbose"`
	ColorMode ColorMode `mapstructure:"color"`
	LogFile   string    `mapstructure:"log_file"`
	CheckOnly bool      `mapstructure:"-"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// DefaultConfig returns a Config with the legacy script's defaults.
func DefaultConfig() Config {
	return Config{
		PublicDir:      "./public",
		ThumbSuffix:    "-thumbnails",
		Main:           Encode{Width: 800, Quality: 50},
		Thumb:          Encode{Width: 100, Quality: 10},
		SpecialQuality: 80,
		Tools:          Tools{Magick: "magick", Cwebp: "cwebp"},
		Workers:        runtime.NumCPU(),
		WatchDebounce:  500 * time.Millisecond,
		ColorMode:      ColorAuto,
	}
}

// MainDir returns the source directory for title.
func (c *Config) MainDir(title string) string {
	return filepath.Join(c.PublicDir, title)
}

// ThumbDir returns the sibling thumbnail directory for title.
func (c *Config) ThumbDir(title string) string {
	return filepath.Join(c.PublicDir, title+c.ThumbSuffix)
}

// Validate checks enum fields, numeric ranges, and the title name. The title
// must be a single path element so it cannot escape PublicDir.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1 (got %d)", c.Workers)
	}
	if err := checkQuality("main quality", c.Main.Quality); err != nil {
		return err
	}
	if err := checkQuality("thumbnail quality", c.Thumb.Quality); err != nil {
		return err
	}
	if err := checkQuality("special quality", c.SpecialQuality); err != nil {
		return err
	}
	if c.Main.Width <= 0 || c.Thumb.Width <= 0 {
		return errors.New("widths must be positive")
	}
	if c.PublicDir == "" {
		return errors.New("public directory must not be empty")
	}
	if c.ThumbSuffix == "" {
		return errors.New("thumbnail suffix must not be empty")
	}
	if c.Tools.Magick == "" || c.Tools.Cwebp == "" {
		return errors.New("tool names must not be empty")
	}

	if c.CheckOnly || c.All {
		return nil
	}
	return ValidateTitle(c.Title)
}

// ValidateTitle rejects empty names and anything that is not a single path
// element.
func ValidateTitle(title string) error {
	if title == "" {
		return errors.New("need a TITLE or --all")
	}
	if title == "." || title == ".." || strings.ContainsAny(title, `/\`) {
		return fmt.Errorf("invalid title %q (must be a directory name)", title)
	}
	return nil
}

func checkQuality(name string, q int) error {
	if q < 0 || q > 100 {
		return fmt.Errorf("%s must be between 0 and 100 (got %d)", name, q)
	}
	return nil
}
