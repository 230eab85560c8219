package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/townpack/internal/app"
	"github.com/vk/townpack/internal/config"
	"github.com/vk/townpack/internal/layout"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

var summaries = map[app.Stage]string{
	app.StageGenerate: "Scan a town's category folders and write its asset manifest and scaling config.",
	app.StagePack:     "Merge every asset listed in a town's manifest into one binary glTF scene.",
}

// Parse processes the command-line arguments of stage. It returns a
// populated Config, a boolean indicating if the program should exit
// cleanly, or an ExitError. Settings are resolved from the defaults, the
// pipeline file, the environment and finally the flags.
func Parse(stage app.Stage, args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.", "stage", stage)
	name := "townpack-" + string(stage)
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprintf(output, `
%s

Usage:
  %s [options] [TOWN]

Arguments:
  TOWN
    Name of the town directory under the root. Defaults to %q.

Options:
`, summaries[stage], name, config.DefaultTown)
		flagSet.PrintDefaults()
	}

	def := config.Default()
	configFlag := flagSet.String("config", "", "Path to an HCL pipeline file. Defaults to ./"+config.FileName+" when present.")
	rootFlag := flagSet.String("root", def.Root, "Directory containing one folder per town.")
	defaultsFlag := flagSet.String("defaults", def.Defaults, "Category defaults file: JSON, or YAML/HCL by extension.")
	policyFlag := flagSet.String("policy", def.Policy, "Scale policy. Options: 'height-normalize', 'category-relative', 'humanoid-clamped', 'manual'.")
	targetFlag := flagSet.Float64("target-height", def.TargetHeight, "Target height in meters for the height-normalize policy.")
	layoutFlag := flagSet.String("layout", def.Layout, "Placement layout. Options: '"+strings.Join(layout.Names, "', '")+"'.")
	workersFlag := flagSet.Int("workers", def.Workers, "Number of assets processed concurrently.")
	timeoutFlag := flagSet.Duration("timeout", def.AssetTimeout, "Time limit for loading a single asset. 0 disables it.")
	logFormatFlag := flagSet.String("log-format", def.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", def.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one TOWN argument, got %d", flagSet.NArg())}
	}
	town := config.DefaultTown
	if flagSet.NArg() == 1 {
		town = flagSet.Arg(0)
	}
	slog.Debug("Town determined.", "town", town)

	pipeline, err := config.Load(context.Background(), config.Options{File: *configFlag, Town: town})
	if err != nil {
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}

	// Only flags given on the command line override lower layers.
	applyFlags := func(c *config.Config) {
		flagSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "root":
				c.Root = *rootFlag
			case "defaults":
				c.Defaults = *defaultsFlag
			case "policy":
				c.Policy = *policyFlag
			case "target-height":
				c.TargetHeight = *targetFlag
			case "layout":
				c.Layout = *layoutFlag
			case "workers":
				c.Workers = *workersFlag
			case "timeout":
				c.AssetTimeout = *timeoutFlag
			case "log-format":
				c.LogFormat = strings.ToLower(*logFormatFlag)
			case "log-level":
				c.LogLevel = strings.ToLower(*logLevelFlag)
			}
		})
	}
	applyFlags(pipeline)
	slog.Debug("CLI parameter layering complete.")

	cfg, err := app.NewConfig(app.Config{
		Stage:    stage,
		Town:     town,
		Pipeline: *pipeline,
	})
	if err != nil {
		return nil, false, &ExitError{Code: configErrorCode(stage, town, applyFlags), Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}

// configErrorCode classifies an invalid merged config. It is a usage error
// when the command line alone is invalid, that is when the flags and TOWN
// fail on top of the built-in defaults. Otherwise the bad value came from
// the pipeline file or the environment.
func configErrorCode(stage app.Stage, town string, applyFlags func(*config.Config)) int {
	c := config.Default()
	applyFlags(&c)
	if _, err := app.NewConfig(app.Config{Stage: stage, Town: town, Pipeline: c}); err != nil {
		return 2
	}
	return 1
}
