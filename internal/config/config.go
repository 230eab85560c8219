package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/layout"
	"github.com/vk/townpack/internal/scale"
	"github.com/vk/townpack/internal/store"
)

// DefaultTown is processed when no town is named.
const DefaultTown = "town1"

// FileName is the pipeline file looked up in the working directory.
const FileName = "townpack.hcl"

// Config holds the resolved pipeline settings.
type Config struct {
	// Root is the directory holding one subdirectory per town.
	Root string `env:"ROOT"`
	// Defaults is the category defaults table.
	Defaults   string   `env:"DEFAULTS"`
	Categories []string `env:"CATEGORIES" envSeparator:","`
	Extension  string   `env:"EXTENSION"`

	Policy       string  `env:"POLICY"`
	TargetHeight float64 `env:"TARGET_HEIGHT"`
	MinHeight    float64 `env:"MIN_HEIGHT"`
	MaxHeight    float64 `env:"MAX_HEIGHT"`

	Layout  string  `env:"LAYOUT"`
	Columns int     `env:"LAYOUT_COLUMNS"`
	Spacing float64 `env:"LAYOUT_SPACING"`
	Extent  float64 `env:"LAYOUT_EXTENT"`

	ManifestFile string `env:"MANIFEST_FILE"`
	ScalingFile  string `env:"SCALING_FILE"`
	PackedFile   string `env:"PACKED_FILE"`

	Workers      int           `env:"WORKERS"`
	AssetTimeout time.Duration `env:"ASSET_TIMEOUT"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// Default returns the built-in settings.
func Default() Config {
	so := scale.DefaultOptions()
	lo := layout.DefaultOptions()
	return Config{
		Root:         filepath.Join("assets", "towns"),
		Defaults:     store.DefaultsFile,
		Categories:   category.Set(category.All).Strings(),
		Extension:    ".glb",
		Policy:       scale.HeightNormalize.String(),
		TargetHeight: so.TargetHeight,
		MinHeight:    so.MinHeight,
		MaxHeight:    so.MaxHeight,
		Layout:       "grid",
		Columns:      lo.Columns,
		Spacing:      float64(lo.Spacing),
		Extent:       float64(lo.Extent),
		ManifestFile: store.ManifestFile,
		ScalingFile:  store.ScalingFile,
		PackedFile:   store.PackedFile,
		Workers:      runtime.NumCPU(),
		AssetTimeout: 30 * time.Second,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

var townPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateTown checks that town can be used as a directory name.
func ValidateTown(town string) error {
	if !townPattern.MatchString(town) || town == ".." {
		return fmt.Errorf("invalid town name %q", town)
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Root == "" {
		errs = append(errs, errors.New("root must not be empty"))
	}
	if _, err := category.ParseSet(c.Categories); err != nil {
		errs = append(errs, err)
	}
	if c.Extension == "" {
		errs = append(errs, errors.New("extension must not be empty"))
	}
	if _, err := c.ScalePolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := layout.New(c.Layout, c.LayoutOptions(0)); err != nil {
		errs = append(errs, err)
	}
	for _, f := range []struct{ name, file string }{
		{"manifest", c.ManifestFile},
		{"scaling", c.ScalingFile},
		{"packed", c.PackedFile},
	} {
		if f.file == "" || filepath.Base(f.file) != f.file {
			errs = append(errs, fmt.Errorf("%s file name %q must be a plain file name", f.name, f.file))
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.AssetTimeout < 0 {
		errs = append(errs, fmt.Errorf("asset timeout must not be negative, got %s", c.AssetTimeout))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.LogFormat))
	}
	return errors.Join(errs...)
}

// CategorySet returns the configured categories.
func (c *Config) CategorySet() (category.Set, error) {
	return category.ParseSet(c.Categories)
}

// ScalePolicy parses the configured policy and checks it against the scale
// parameters.
func (c *Config) ScalePolicy() (scale.Policy, error) {
	p, err := scale.ParsePolicy(c.Policy)
	if err != nil {
		return 0, err
	}
	if _, err := scale.NewEngine(p, c.ScaleOptions()); err != nil {
		return 0, err
	}
	return p, nil
}

// ScaleOptions returns the numeric scale parameters.
func (c *Config) ScaleOptions() scale.Options {
	return scale.Options{TargetHeight: c.TargetHeight, MinHeight: c.MinHeight, MaxHeight: c.MaxHeight}
}

// LayoutOptions returns the layout parameters for count assets.
func (c *Config) LayoutOptions(count int) layout.Options {
	return layout.Options{
		Columns: c.Columns,
		Spacing: float32(c.Spacing),
		Extent:  float32(c.Extent),
		Count:   count,
	}
}

// TownDir returns the directory of town.
func (c *Config) TownDir(town string) string { return filepath.Join(c.Root, town) }

// ManifestPath returns the manifest file of town.
func (c *Config) ManifestPath(town string) string {
	return filepath.Join(c.TownDir(town), c.ManifestFile)
}

// ScalingPath returns the scaling config file of town.
func (c *Config) ScalingPath(town string) string {
	return filepath.Join(c.TownDir(town), c.ScalingFile)
}

// PackedPath returns the packed scene file of town.
func (c *Config) PackedPath(town string) string {
	return filepath.Join(c.TownDir(town), c.PackedFile)
}
