package packer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/gltf"
	"github.com/vk/townpack/internal/linear"
)

// job is one manifest path with its resolved placement.
type job struct {
	category category.Category
	path     string
	scale    float32
	offset   linear.V3
}

// asset is a loaded source ready to be merged.
type asset struct {
	job
	model *gltf.Model
	scene int64
	// images holds the bytes of images stored next to the asset, so the
	// merged binary can embed them.
	images map[int64][]byte
}

// prepare loads the asset of j. It returns nil when the asset must be
// skipped, after logging why.
func (p *Packer) prepare(ctx context.Context, j job) *asset {
	logger := ctxlog.FromContext(ctx).With("category", j.category, "path", j.path)

	lctx := ctx
	if p.opts.AssetTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, p.opts.AssetTimeout)
		defer cancel()
	}
	m, err := p.loader.Load(lctx, fileName(j.path))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			logger.Warn("Asset load timed out, skipping.", "timeout", p.opts.AssetTimeout)
		} else if ctx.Err() == nil {
			logger.Warn("Failed to load asset, skipping.", "error", err)
		}
		return nil
	}
	scene, ok := m.Doc.DefaultScene()
	if !ok {
		logger.Warn("Asset has no default scene, skipping.")
		return nil
	}

	a := &asset{job: j, model: m, scene: scene, images: make(map[int64][]byte)}
	for i, img := range m.Doc.Images {
		if img.BufferView != nil || img.URI == "" || strings.HasPrefix(img.URI, "data:") {
			continue
		}
		b, err := p.loader.ReadRelative(m.Path, img.URI)
		if err != nil {
			logger.Warn("Failed to read image, dropping it.", "image", img.URI, "error", err)
			continue
		}
		a.images[int64(i)] = b
	}
	logger.Debug("Asset prepared.", "scale", j.scale, "offset", j.offset)
	return a
}

// fileName converts a manifest key to a local file path.
func fileName(path string) string { return filepath.FromSlash(path) }
