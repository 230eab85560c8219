package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/fsutil"
)

// File names inside a town directory.
const (
	ManifestFile = "assetsManifest.json"
	ScalingFile  = "scalingConfig.json"
	PackedFile   = "packedTown.glb"
	DefaultsFile = "scalingDefaults.json"
)

// ErrParse is wrapped by every read error caused by document content
// rather than I/O.
var ErrParse = errors.New("parse error")

func encode(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// WriteManifest validates m and replaces the file at path with it.
// Identical manifests produce identical bytes.
func WriteManifest(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	b, err := encode(m)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// WriteScaling validates s and replaces the file at path with it. Keys are
// written in sorted order.
func WriteScaling(path string, s ScalingConfig) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("write scaling config: %w", err)
	}
	b, err := encode(map[string]float64(s))
	if err != nil {
		return fmt.Errorf("write scaling config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, b, 0o644); err != nil {
		return fmt.Errorf("write scaling config: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest at path. Every category must belong to
// cats. On any error nothing is returned.
func ReadManifest(path string, cats category.Set) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w: %w", path, ErrParse, err)
	}
	for _, e := range m.entries {
		if !cats.Contains(e.Category) {
			return nil, fmt.Errorf("read manifest %s: %w: category %s is not configured", path, ErrParse, e.Category)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w: %w", path, ErrParse, err)
	}
	return &m, nil
}

// ReadScaling reads the scaling config at path. On any error nothing is
// returned.
func ReadScaling(path string) (ScalingConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaling config: %w", err)
	}
	var s ScalingConfig
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("read scaling config %s: %w: %w", path, ErrParse, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("read scaling config %s: %w: %w", path, ErrParse, err)
	}
	return s, nil
}
