// Package packer merges every asset listed in a town manifest into one
// binary glTF scene. Each asset's top-level nodes are deep-copied with the
// resources they reference, scaled by the asset's scaling entry and moved
// to the offset chosen by a layout.
package packer

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/fsutil"
	"github.com/vk/townpack/internal/gltf"
	"github.com/vk/townpack/internal/layout"
	"github.com/vk/townpack/internal/store"
	"golang.org/x/sync/errgroup"
)

// Options configure a Packer.
type Options struct {
	// Workers bounds the number of assets loaded at once.
	Workers int
	// AssetTimeout bounds the load of a single asset. Zero means no limit.
	AssetTimeout time.Duration
	// Layout places the assets. Nil places everything at the origin.
	Layout layout.Layout
	// SceneName names the merged scene.
	SceneName string
}

// Stats summarize a pack run.
type Stats struct {
	// Assets is the number of assets merged.
	Assets int
	// Skipped is the number of manifest paths left out.
	Skipped int
	// Instances is the number of top-level nodes added to the scene.
	Instances int
}

// Town is a merged document and the contents of its single binary buffer.
type Town struct {
	Doc *gltf.Document
	Bin []byte
}

// Packer merges town assets.
type Packer struct {
	loader *gltf.Loader
	opts   Options
}

// New creates a Packer that opens assets with loader.
func New(loader *gltf.Loader, opts Options) *Packer {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Layout == nil {
		opts.Layout = layout.Origin{}
	}
	return &Packer{loader: loader, opts: opts}
}

// Pack loads every asset in m, in manifest order, and merges them. Assets
// that fail to load or have no scene are skipped with a warning. Loading
// runs in parallel; merging is sequential, so the output depends only on
// the inputs. Pack fails only when ctx is done or a merge step fails.
func (p *Packer) Pack(ctx context.Context, m *store.Manifest, s store.ScalingConfig) (*Town, Stats, error) {
	logger := ctxlog.FromContext(ctx)

	var jobs []job
	for _, e := range m.Entries() {
		for _, path := range e.Paths {
			i := len(jobs)
			scale, ok := s.Lookup(path)
			if !ok {
				logger.Debug("No scaling entry, using default.", "path", path, "scale", scale)
			}
			jobs = append(jobs, job{
				category: e.Category,
				path:     path,
				scale:    float32(scale),
				offset:   p.opts.Layout.Offset(i, path),
			})
		}
	}
	logger.Info("Packing town.", "assets", len(jobs), "workers", p.opts.Workers)

	prepared := make([]*asset, len(jobs))
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			prepared[i] = p.prepare(ctx, jobs[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	mg := newMerger(p.opts.SceneName)
	for i, a := range prepared {
		if a == nil {
			stats.Skipped++
			continue
		}
		n, err := mg.add(ctx, a)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("merge %s: %w", jobs[i].path, err)
		}
		stats.Assets++
		stats.Instances += n
	}
	town := mg.finish()
	logger.Info("Town packed.", "assets", stats.Assets, "skipped", stats.Skipped, "instances", stats.Instances, "bytes", len(town.Bin))
	return town, stats, nil
}

// WriteGLB encodes t as binary glTF and replaces the file at path with it.
func WriteGLB(path string, t *Town) error {
	var buf bytes.Buffer
	if err := gltf.EncodeGLB(&buf, t.Doc, t.Bin); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
