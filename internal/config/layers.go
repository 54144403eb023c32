package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (IMGOPT_MAIN_QUALITY, ...).
const EnvPrefix = "IMGOPT"

// defaultConfigName is searched for in the working directory when --config
// is not given. Any extension viper understands is accepted.
const defaultConfigName = "imgopt"

// flagKeys maps viper keys to the flags that can set them.
var flagKeys = map[string]string{
	"public_dir":        "public-dir",
	"special_manifest":  "special",
	"main.width":        "main-width",
	"main.quality":      "main-quality",
	"thumbnail.width":   "thumb-width",
	"thumbnail.quality": "thumb-quality",
	"special_quality":   "special-quality",
	"force":             "force",
	"workers":           "cpu",
	"watch":             "watch",
	"verbose":           "verbose",
	"color":             "color",
	"log_file":          "log",
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyLayers resolves every configurable key through viper and writes the
// result back into cfg. configFile is explicit (must exist) when non-empty;
// otherwise ./imgopt.* is used if present.
func applyLayers(cfg *Config, defaults Config, flags *pflag.FlagSet, configFile string) error {
	v := newViper(defaults)

	for key, name := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return nil
}

// newViper returns a viper instance with defaults registered for every key,
// which is also what makes AutomaticEnv see them during Unmarshal.
func newViper(d Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("public_dir", d.PublicDir)
	v.SetDefault("thumb_suffix", d.ThumbSuffix)
	v.SetDefault("special_manifest", d.SpecialManifest)
	v.SetDefault("main.width", d.Main.Width)
	v.SetDefault("main.quality", d.Main.Quality)
	v.SetDefault("thumbnail.width", d.Thumb.Width)
	v.SetDefault("thumbnail.quality", d.Thumb.Quality)
	v.SetDefault("special_quality", d.SpecialQuality)
	v.SetDefault("tools.magick", d.Tools.Magick)
	v.SetDefault("tools.cwebp", d.Tools.Cwebp)
	v.SetDefault("force", d.Force)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("watch_debounce", d.WatchDebounce)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("color", string(d.ColorMode))
	v.SetDefault("log_file", d.LogFile)
	return v
}
