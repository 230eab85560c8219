package app

import (
	"errors"
	"fmt"

	"github.com/vk/townpack/internal/config"
)

// Stage names a pipeline stage.
type Stage string

const (
	// StageGenerate scans a town and writes its manifest and scaling config.
	StageGenerate Stage = "generate"
	// StagePack merges a town's assets into one binary glTF file.
	StagePack Stage = "pack"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Stage    Stage
	Town     string
	Pipeline config.Config
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Stage {
	case StageGenerate, StagePack:
	default:
		return nil, fmt.Errorf("unknown stage %q", cfg.Stage)
	}
	if cfg.Town == "" {
		return nil, errors.New("Town is a required configuration field and cannot be empty")
	}
	if err := config.ValidateTown(cfg.Town); err != nil {
		return nil, err
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
