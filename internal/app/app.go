package app

import (
	"io"
	"log/slog"

	"github.com/vk/townpack/internal/gltf"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader *gltf.Loader
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. A nil loader reads
// assets from the local file system.
func NewApp(outW io.Writer, cfg *Config, loader *gltf.Loader) *App {
	logger := newLogger(cfg.Pipeline.LogLevel, cfg.Pipeline.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		loader = gltf.NewLoader()
	}
	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		loader: loader,
	}
}

// Config returns the application's configuration. This is primarily for testing.
func (a *App) Config() *Config {
	return a.config
}
