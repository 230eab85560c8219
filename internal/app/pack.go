package app

import (
	"context"
	"errors"
	"io/fs"

	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/layout"
	"github.com/vk/townpack/internal/packer"
	"github.com/vk/townpack/internal/store"
)

// Pack reads the town's manifest and scaling config and writes the merged
// scene. A missing scaling config scales everything by 1.0.
func (a *App) Pack(ctx context.Context) (packer.Stats, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := &a.config.Pipeline
	town := a.config.Town

	cats, err := cfg.CategorySet()
	if err != nil {
		return packer.Stats{}, err
	}
	manifest, err := store.ReadManifest(cfg.ManifestPath(town), cats)
	if err != nil {
		return packer.Stats{}, err
	}
	scaling, err := store.ReadScaling(cfg.ScalingPath(town))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("Scaling config missing, using scale 1.0 for all assets.", "file", cfg.ScalingPath(town))
		scaling = store.ScalingConfig{}
	case err != nil:
		return packer.Stats{}, err
	}
	if err := store.ValidatePair(manifest, scaling); err != nil {
		logger.Warn("Scaling config does not match the manifest, extra entries are ignored.", "error", err)
	}

	l, err := layout.New(cfg.Layout, cfg.LayoutOptions(manifest.Len()))
	if err != nil {
		return packer.Stats{}, err
	}
	p := packer.New(a.loader, packer.Options{
		Workers:      cfg.Workers,
		AssetTimeout: cfg.AssetTimeout,
		Layout:       l,
		SceneName:    town,
	})
	t, stats, err := p.Pack(ctx, manifest, scaling)
	if err != nil {
		return packer.Stats{}, err
	}
	if err := packer.WriteGLB(cfg.PackedPath(town), t); err != nil {
		return packer.Stats{}, err
	}
	logger.Info("Packed town written.", "file", cfg.PackedPath(town), "assets", stats.Assets, "skipped", stats.Skipped)
	return stats, nil
}
