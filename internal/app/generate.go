package app

import (
	"context"
	"errors"
	"os"

	"github.com/vk/townpack/internal/bounds"
	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/scale"
	"github.com/vk/townpack/internal/scan"
	"github.com/vk/townpack/internal/store"
	"golang.org/x/sync/errgroup"
)

// GenerateResult is what the generate stage wrote.
type GenerateResult struct {
	Manifest *store.Manifest
	Scaling  store.ScalingConfig
	// Skipped counts assets found on disk but left out of both documents.
	Skipped int
}

// Generate scans the town, computes a scale for every asset under the
// configured policy and writes the manifest and scaling config. Assets and
// categories that cannot be scaled are skipped with a warning; only
// configuration errors and write failures abort the stage.
func (a *App) Generate(ctx context.Context) (*GenerateResult, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := &a.config.Pipeline
	town := a.config.Town

	cats, err := cfg.CategorySet()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.ScalePolicy()
	if err != nil {
		return nil, err
	}
	engine, err := scale.NewEngine(policy, cfg.ScaleOptions())
	if err != nil {
		return nil, err
	}

	var defaults *scale.CategoryDefaults
	if policy.UsesDefaults() {
		if defaults, err = store.ReadDefaults(ctx, cfg.Defaults); err != nil {
			return nil, err
		}
	}

	dir := cfg.TownDir(town)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logger.Warn("Town directory does not exist, writing empty documents.", "dir", dir)
	}
	res, err := scan.Scan(ctx, dir, cats, cfg.Extension)
	if err != nil {
		return nil, err
	}
	logger.Info("Generating manifest.", "policy", policy, "assets", res.Len())

	var records []*scan.AssetRecord
	for i := range res.Folders {
		f := &res.Folders[i]
		switch {
		case f.Missing:
			logger.Warn("Category folder missing, skipping category.", "category", f.Category)
			continue
		case engine.CheckCategory(f.Category, defaults) != nil:
			logger.Warn("No default defined for category, skipping category.", "category", f.Category, "policy", policy)
			continue
		}
		for j := range f.Records {
			records = append(records, &f.Records[j])
		}
	}

	scales := make([]float64, len(records))
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			scales[i] = a.scaleAsset(ctx, engine, defaults, rec)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &GenerateResult{Manifest: store.NewManifest(cats), Scaling: store.ScalingConfig{}}
	for i, rec := range records {
		if scales[i] == 0 {
			out.Skipped++
			continue
		}
		out.Manifest.Add(rec.Category, rec.Path)
		out.Scaling[rec.Path] = scales[i]
	}

	if err := store.WriteManifest(cfg.ManifestPath(town), out.Manifest); err != nil {
		return nil, err
	}
	if err := store.WriteScaling(cfg.ScalingPath(town), out.Scaling); err != nil {
		return nil, err
	}
	logger.Info("Manifest and scaling config written.",
		"manifest", cfg.ManifestPath(town),
		"scaling", cfg.ScalingPath(town),
		"assets", out.Manifest.Len(),
		"skipped", out.Skipped,
	)
	return out, nil
}

// scaleAsset loads, measures and scales one asset. It returns 0 when the
// asset must be left out, after logging why.
func (a *App) scaleAsset(ctx context.Context, engine *scale.Engine, defaults *scale.CategoryDefaults, rec *scan.AssetRecord) float64 {
	ctx = ctxlog.With(ctx, "category", rec.Category, "path", rec.Path)
	logger := ctxlog.FromContext(ctx)
	policy := engine.Policy()

	if policy.NeedsLoad() {
		lctx := ctx
		if t := a.config.Pipeline.AssetTimeout; t > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}
		m, err := a.loader.Load(lctx, rec.File)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				logger.Warn("Asset load timed out, skipping.", "timeout", a.config.Pipeline.AssetTimeout)
			} else if ctx.Err() == nil {
				logger.Warn("Failed to load asset, skipping.", "error", err)
			}
			return 0
		}
		if policy.NeedsGeometry() {
			box, err := bounds.Extract(m)
			if err != nil {
				logger.Warn("Failed to read asset geometry, skipping.", "error", err)
				return 0
			}
			rec.Bounds = box
			logger.Debug("Bounds extracted.", "bounds", box)
		}
	}

	s, err := engine.Compute(ctx, scale.Input{Path: rec.Path, Category: rec.Category, Box: rec.Bounds}, defaults)
	if err != nil {
		logger.Warn("Cannot scale asset, skipping.", "error", err)
		return 0
	}
	logger.Debug("Asset scaled.", "scale", s)
	return s
}
