package config

// This file implements CLI flag parsing and help text. Flags are parsed with
// pflag for GNU-style long/short pairs and then bound into viper, which
// resolves the final value per key: flag > environment > config file > default.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// ErrNoTarget is returned when neither a TITLE nor --all (nor --check) was
// given. Callers print usage and exit successfully, matching the legacy script.
var ErrNoTarget = errors.New("no title given")

// utilityFlags holds flags that never land in Config.
type utilityFlags struct {
	configFile  string
	showVersion bool
	showHelp    bool
}

// ParseFlags parses args (without the program name) into cfg. The values in
// cfg on entry are treated as defaults. On --help or --version it prints and
// exits.
func ParseFlags(cfg *Config, args []string, version string) error {
	defaults := *cfg

	fs := pflag.NewFlagSet("imgopt", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() { PrintUsage(os.Stderr, version) }

	var u utilityFlags
	defineTargetFlags(fs, cfg)
	defineEncodingFlags(fs, cfg)
	defineDisplayFlags(fs, cfg)
	defineUtilityFlags(fs, &u)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if u.showHelp {
		PrintUsage(os.Stdout, version)
		os.Exit(0)
	}
	if u.showVersion {
		fmt.Fprintln(os.Stdout, "imgopt v"+version)
		os.Exit(0)
	}

	if err := applyLayers(cfg, defaults, fs, u.configFile); err != nil {
		return err
	}
	return parsePositionalArgs(fs, cfg)
}

// defineTargetFlags registers --all, --force, --cpu, --public-dir, --special.
func defineTargetFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVarP(&cfg.All, "all", "a", false, "Process all titles")
	fs.BoolVarP(&cfg.Force, "force", "f", cfg.Force, "Reprocess images even when outputs are up to date")
	fs.IntVarP(&cfg.Workers, "cpu", "j", cfg.Workers, "Number of parallel workers")
	fs.StringVar(&cfg.PublicDir, "public-dir", cfg.PublicDir, "Directory holding one sub-directory per title")
	fs.StringVar(&cfg.SpecialManifest, "special", cfg.SpecialManifest, "Special-image manifest (YAML)")
	fs.BoolVarP(&cfg.Watch, "watch", "w", cfg.Watch, "Keep running and re-process titles when sources change")
}

// defineEncodingFlags registers the width/quality knobs.
func defineEncodingFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Main.Width, "main-width", cfg.Main.Width, "Max width of optimized images")
	fs.IntVar(&cfg.Main.Quality, "main-quality", cfg.Main.Quality, "cwebp quality of optimized images")
	fs.IntVar(&cfg.Thumb.Width, "thumb-width", cfg.Thumb.Width, "Max width of thumbnails")
	fs.IntVar(&cfg.Thumb.Quality, "thumb-quality", cfg.Thumb.Quality, "Quality of thumbnails")
	fs.IntVar(&cfg.SpecialQuality, "special-quality", cfg.SpecialQuality, "Quality of special images")
}

// defineDisplayFlags registers --color, --verbose, --log, --check.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Var(&colorModeValue{&cfg.ColorMode}, "color", "Color output: auto | always | never")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "Append logs to file")
	fs.BoolVarP(&cfg.CheckOnly, "check", "c", false, "Run tool diagnostics and exit")
}

// defineUtilityFlags registers --config, --version and --help.
func defineUtilityFlags(fs *pflag.FlagSet, u *utilityFlags) {
	fs.StringVar(&u.configFile, "config", "", "Config file (default: ./imgopt.yaml when present)")
	fs.BoolVarP(&u.showVersion, "version", "V", false, "Print version and exit")
	fs.BoolVarP(&u.showHelp, "help", "h", false, "Show this help and exit")
}

// parsePositionalArgs sets Title from the optional positional arg. --all
// takes precedence over a TITLE.
func parsePositionalArgs(fs *pflag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if len(args) > 1 {
		return fmt.Errorf("expected at most one TITLE, got %d", len(args))
	}
	if len(args) == 1 {
		cfg.Title = strings.TrimRight(args[0], `/\`)
	}
	if cfg.Title == "" && !cfg.All && !cfg.CheckOnly {
		return ErrNoTarget
	}
	return nil
}

// PrintUsage writes the help text to w. Column-aligned for readability.
func PrintUsage(w io.Writer, version string) {
	const col1 = 30
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "imgopt v" + version + " - batch WebP optimizer for title image trees"},
		{"", ""},
		{"  imgopt [OPTIONS] <TITLE>", ""},
		{"  imgopt [OPTIONS] --all", ""},
		{"", ""},
		{"Selection", ""},
		{"  -a, --all", "Process every title under --public-dir"},
		{"  --public-dir <dir>", "Root with one directory per title (default: ./public)"},
		{"  --special <file>", "Special-image manifest (default: built in)"},
		{"", ""},
		{"Behavior", ""},
		{"  -f, --force", "Reprocess even when outputs are up to date"},
		{"  -j, --cpu <n>", "Parallel workers (default: CPU count)"},
		{"  -w, --watch", "Re-process titles when sources change"},
		{"", ""},
		{"Encoding", ""},
		{"  --main-width <px>", "Max width of optimized images (default: 800)"},
		{"  --main-quality <q>", "cwebp quality of optimized images (default: 50)"},
		{"  --thumb-width <px>", "Max width of thumbnails (default: 100)"},
		{"  --thumb-quality <q>", "Quality of thumbnails (default: 10)"},
		{"  --special-quality <q>", "Quality of special images (default: 80)"},
		{"", ""},
		{"Display", ""},
		{"  --color <auto|always|never>", "Color output; honors NO_COLOR (default: auto)"},
		{"  -v, --verbose", "Show skipped files and failing tool output"},
		{"  -l, --log <path>", "Append logs to file"},
		{"", ""},
		{"Utility", ""},
		{"  --config <file>", "Config file (default: ./imgopt.yaml if present)"},
		{"  -c, --check", "Tool diagnostics (magick, cwebp)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
		{"", ""},
		{"", "Environment: IMGOPT_<KEY> overrides config keys, e.g. IMGOPT_MAIN_QUALITY=60."},
	}

	for _, l := range lines {
		switch {
		case l.flags == "" && l.desc == "":
			fmt.Fprintln(w)
		case l.desc == "":
			fmt.Fprintln(w, l.flags)
		case l.flags == "":
			fmt.Fprintln(w, l.desc)
		default:
			padding := col1 - len(l.flags)
			if padding < 1 {
				padding = 1
			}
			fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
		}
	}
}

// colorModeValue adapts ColorMode to pflag.Value.
type colorModeValue struct{ p *ColorMode }

func (c *colorModeValue) String() string { return string(*c.p) }
func (c *colorModeValue) Type() string   { return "string" }
func (c *colorModeValue) Set(s string) error {
	switch ColorMode(strings.ToLower(s)) {
	case ColorAuto:
		*c.p = ColorAuto
	case ColorAlways:
		*c.p = ColorAlways
	case ColorNever:
		*c.p = ColorNever
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}
