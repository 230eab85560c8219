package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/townpack/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// EnvPrefix prefixes every environment variable read by ParseEnv.
const EnvPrefix = "TOWNPACK_"

// fileRoot is the schema of a pipeline file. Every attribute is optional;
// unset ones keep the value of the lower layer.
type fileRoot struct {
	Root         *string      `hcl:"root,optional"`
	Defaults     *string      `hcl:"defaults,optional"`
	Categories   *[]string    `hcl:"categories,optional"`
	Extension    *string      `hcl:"extension,optional"`
	Workers      *int         `hcl:"workers,optional"`
	AssetTimeout *string      `hcl:"asset_timeout,optional"`
	LogLevel     *string      `hcl:"log_level,optional"`
	LogFormat    *string      `hcl:"log_format,optional"`
	Scale        *scaleBlock  `hcl:"scale,block"`
	Layout       *layoutBlock `hcl:"layout,block"`
	Output       *outputBlock `hcl:"output,block"`
}

type scaleBlock struct {
	Policy       *string  `hcl:"policy,optional"`
	TargetHeight *float64 `hcl:"target_height,optional"`
	MinHeight    *float64 `hcl:"min_height,optional"`
	MaxHeight    *float64 `hcl:"max_height,optional"`
}

type layoutBlock struct {
	Kind    *string  `hcl:"kind,optional"`
	Columns *int     `hcl:"columns,optional"`
	Spacing *float64 `hcl:"spacing,optional"`
	Extent  *float64 `hcl:"extent,optional"`
}

type outputBlock struct {
	Manifest *string `hcl:"manifest,optional"`
	Scaling  *string `hcl:"scaling,optional"`
	Packed   *string `hcl:"packed,optional"`
}

// Options select the sources Load reads.
type Options struct {
	// File is an explicit pipeline file. When empty, FileName is used if it
	// exists in the working directory.
	File string
	// Town is exposed to the pipeline file as the variable town.
	Town string
	// Environ replaces the process environment when not nil.
	Environ map[string]string
}

// Load resolves the settings from the built-in defaults, the pipeline file
// and the environment. The result is not validated; flags may still change
// it.
func Load(ctx context.Context, opts Options) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()

	path := opts.File
	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}
	if path != "" {
		if err := DecodeFile(path, opts.Town, &cfg); err != nil {
			return nil, err
		}
		logger.Debug("Pipeline file loaded.", "file", path)
	}

	if err := ParseEnv(&cfg, opts.Environ); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeFile applies the pipeline file at path on top of cfg.
func DecodeFile(path, town string, cfg *Config) error {
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pipeline file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("read pipeline file: %w", err)
	}
	return decode(src, path, town, cfg)
}

func decode(src []byte, filename, town string, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"town": cty.StringVal(town)},
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	set(&cfg.Root, root.Root)
	set(&cfg.Defaults, root.Defaults)
	set(&cfg.Categories, root.Categories)
	set(&cfg.Extension, root.Extension)
	set(&cfg.Workers, root.Workers)
	set(&cfg.LogLevel, root.LogLevel)
	set(&cfg.LogFormat, root.LogFormat)
	if root.AssetTimeout != nil {
		d, err := time.ParseDuration(*root.AssetTimeout)
		if err != nil {
			return fmt.Errorf("%s: asset_timeout: %w", filename, err)
		}
		cfg.AssetTimeout = d
	}
	if s := root.Scale; s != nil {
		set(&cfg.Policy, s.Policy)
		set(&cfg.TargetHeight, s.TargetHeight)
		set(&cfg.MinHeight, s.MinHeight)
		set(&cfg.MaxHeight, s.MaxHeight)
	}
	if l := root.Layout; l != nil {
		set(&cfg.Layout, l.Kind)
		set(&cfg.Columns, l.Columns)
		set(&cfg.Spacing, l.Spacing)
		set(&cfg.Extent, l.Extent)
	}
	if o := root.Output; o != nil {
		set(&cfg.ManifestFile, o.Manifest)
		set(&cfg.ScalingFile, o.Scaling)
		set(&cfg.PackedFile, o.Packed)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// ParseEnv applies TOWNPACK_* variables on top of cfg. Variables that are
// unset leave the field untouched. environ replaces the process
// environment when not nil.
func ParseEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
