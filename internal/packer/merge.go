package packer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"slices"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/gltf"
)

// merger accumulates copied assets into one document with one buffer.
type merger struct {
	doc      gltf.Document
	bin      []byte
	scene    gltf.Scene
	used     map[string]bool
	required map[string]bool
}

func newMerger(sceneName string) *merger {
	return &merger{
		doc: gltf.Document{
			Asset: gltf.AssetInfo{Version: "2.0", Generator: "townpack"},
		},
		scene:    gltf.Scene{Name: sceneName},
		used:     make(map[string]bool),
		required: make(map[string]bool),
	}
}

// finish returns the merged town. The merger must not be used afterwards.
func (mg *merger) finish() *Town {
	doc := mg.doc
	doc.Scenes = []gltf.Scene{mg.scene}
	doc.Scene = new(int64)
	if len(mg.bin) > 0 {
		doc.Buffers = []gltf.Buffer{{ByteLength: int64(len(mg.bin))}}
	}
	doc.ExtensionsUsed = sortedKeys(mg.used)
	doc.ExtensionsRequired = sortedKeys(mg.required)
	return &Town{Doc: &doc, Bin: mg.bin}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// clone returns an independent deep copy of v.
func clone[T any](v *T) (T, error) {
	var out T
	err := copier.CopyWithOption(&out, v, copier.Option{CaseSensitive: true, DeepCopy: true})
	return out, err
}

// remap records, per source index, the index of the copy in the
// destination document. A missing entry means not copied yet.
type remap map[int64]int64

// copier state for one source asset.
type assetCopy struct {
	mg  *merger
	src *asset
	doc *gltf.Document

	nodes, meshes, accessors, views, materials, textures, images, samplers, skins, cameras remap
}

// add merges a into the destination and returns the number of top-level
// instances it contributed.
func (mg *merger) add(ctx context.Context, a *asset) (int, error) {
	logger := ctxlog.FromContext(ctx).With("category", a.category, "path", a.path)
	c := &assetCopy{
		mg: mg, src: a, doc: a.model.Doc,
		nodes: remap{}, meshes: remap{}, accessors: remap{}, views: remap{}, materials: remap{},
		textures: remap{}, images: remap{}, samplers: remap{}, skins: remap{}, cameras: remap{},
	}

	var roots []int64
	for _, r := range c.doc.Scenes[a.scene].Nodes {
		if !slices.Contains(roots, r) {
			roots = append(roots, r)
		}
	}
	if len(roots) == 0 {
		logger.Warn("Asset scene has no nodes.")
	}
	first := int64(len(mg.doc.Nodes))
	for _, r := range roots {
		if _, err := c.node(r); err != nil {
			return 0, err
		}
	}
	// The node copies are contiguous; resolve their references.
	for i := first; i < int64(len(mg.doc.Nodes)); i++ {
		if err := c.nodeRefs(&mg.doc.Nodes[i], logger); err != nil {
			return 0, err
		}
	}
	animated, err := c.animations(logger)
	if err != nil {
		return 0, err
	}

	for _, r := range roots {
		dst := c.nodes[r]
		if animated[dst] {
			mg.doc.Nodes = append(mg.doc.Nodes, wrapper(a.scale, a.offset))
			w := int64(len(mg.doc.Nodes) - 1)
			mg.doc.Nodes[w].Children = []int64{dst}
			mg.scene.Nodes = append(mg.scene.Nodes, w)
			continue
		}
		place(&mg.doc.Nodes[dst], a.scale, a.offset)
		mg.scene.Nodes = append(mg.scene.Nodes, dst)
	}

	for _, e := range c.doc.ExtensionsUsed {
		mg.used[e] = true
	}
	for _, e := range c.doc.ExtensionsRequired {
		mg.required[e] = true
	}
	logger.Debug("Asset merged.", "roots", len(roots), "nodes", len(c.nodes), "meshes", len(c.meshes))
	return len(roots), nil
}

// node copies the subtree rooted at src and returns the copy's index.
// References other than children are left as source indices; nodeRefs
// rewrites them.
func (c *assetCopy) node(src int64) (int64, error) {
	n, err := clone(&c.doc.Nodes[src])
	if err != nil {
		return 0, fmt.Errorf("copy node %d: %w", src, err)
	}
	c.mg.doc.Nodes = append(c.mg.doc.Nodes, n)
	dst := int64(len(c.mg.doc.Nodes) - 1)
	c.nodes[src] = dst
	children := make([]int64, 0, len(n.Children))
	for _, ch := range n.Children {
		d, err := c.node(ch)
		if err != nil {
			return 0, err
		}
		children = append(children, d)
	}
	if len(children) == 0 {
		children = nil
	}
	c.mg.doc.Nodes[dst].Children = children
	return dst, nil
}

func (c *assetCopy) nodeRefs(n *gltf.Node, logger *slog.Logger) error {
	if n.Mesh != nil {
		m, err := c.mesh(*n.Mesh)
		if err != nil {
			return err
		}
		n.Mesh = &m
	}
	if n.Camera != nil {
		cam, err := c.camera(*n.Camera)
		if err != nil {
			return err
		}
		n.Camera = &cam
	}
	if n.Skin != nil {
		s, ok, err := c.skin(*n.Skin)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("Skin joints are outside the copied scene, dropping skin.", "skin", *n.Skin)
			n.Skin = nil
		} else {
			n.Skin = &s
		}
	}
	return nil
}

func (c *assetCopy) mesh(src int64) (int64, error) {
	if d, ok := c.meshes[src]; ok {
		return d, nil
	}
	m, err := clone(&c.doc.Meshes[src])
	if err != nil {
		return 0, fmt.Errorf("copy mesh %d: %w", src, err)
	}
	for i := range m.Primitives {
		p := &m.Primitives[i]
		if p.Attributes, err = c.attributes(p.Attributes); err != nil {
			return 0, err
		}
		for j := range p.Targets {
			if p.Targets[j], err = c.attributes(p.Targets[j]); err != nil {
				return 0, err
			}
		}
		if p.Indices != nil {
			a, err := c.accessor(*p.Indices)
			if err != nil {
				return 0, err
			}
			p.Indices = &a
		}
		if p.Material != nil {
			mat, err := c.material(*p.Material)
			if err != nil {
				return 0, err
			}
			p.Material = &mat
		}
	}
	c.mg.doc.Meshes = append(c.mg.doc.Meshes, m)
	d := int64(len(c.mg.doc.Meshes) - 1)
	c.meshes[src] = d
	return d, nil
}

func (c *assetCopy) attributes(attrs map[string]int64) (map[string]int64, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(map[string]int64, len(attrs))
	for _, k := range keys {
		d, err := c.accessor(attrs[k])
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func (c *assetCopy) accessor(src int64) (int64, error) {
	if d, ok := c.accessors[src]; ok {
		return d, nil
	}
	a, err := clone(&c.doc.Accessors[src])
	if err != nil {
		return 0, fmt.Errorf("copy accessor %d: %w", src, err)
	}
	if a.BufferView != nil {
		v := c.view(*a.BufferView)
		a.BufferView = &v
	}
	if s := a.Sparse; s != nil {
		s.Indices.BufferView = c.view(s.Indices.BufferView)
		s.Values.BufferView = c.view(s.Values.BufferView)
	}
	c.mg.doc.Accessors = append(c.mg.doc.Accessors, a)
	d := int64(len(c.mg.doc.Accessors) - 1)
	c.accessors[src] = d
	return d, nil
}

// view copies the bytes of a source buffer view into the destination
// buffer, keeping 4-byte alignment.
func (c *assetCopy) view(src int64) int64 {
	if d, ok := c.views[src]; ok {
		return d
	}
	bv := c.doc.BufferViews[src]
	d := c.mg.appendView(c.src.model.View(src), bv.ByteStride, bv.Target)
	c.mg.doc.BufferViews[d].Name = bv.Name
	c.views[src] = d
	return d
}

func (mg *merger) appendView(data []byte, stride, target int64) int64 {
	for len(mg.bin)%4 != 0 {
		mg.bin = append(mg.bin, 0)
	}
	mg.doc.BufferViews = append(mg.doc.BufferViews, gltf.BufferView{
		Buffer:     0,
		ByteOffset: int64(len(mg.bin)),
		ByteLength: int64(len(data)),
		ByteStride: stride,
		Target:     target,
	})
	mg.bin = append(mg.bin, data...)
	return int64(len(mg.doc.BufferViews) - 1)
}

func (c *assetCopy) material(src int64) (int64, error) {
	if d, ok := c.materials[src]; ok {
		return d, nil
	}
	m, err := clone(&c.doc.Materials[src])
	if err != nil {
		return 0, fmt.Errorf("copy material %d: %w", src, err)
	}
	for _, ti := range m.TextureInfos() {
		if ti.Index, err = c.texture(ti.Index); err != nil {
			return 0, err
		}
	}
	c.mg.doc.Materials = append(c.mg.doc.Materials, m)
	d := int64(len(c.mg.doc.Materials) - 1)
	c.materials[src] = d
	return d, nil
}

func (c *assetCopy) texture(src int64) (int64, error) {
	if d, ok := c.textures[src]; ok {
		return d, nil
	}
	t, err := clone(&c.doc.Textures[src])
	if err != nil {
		return 0, fmt.Errorf("copy texture %d: %w", src, err)
	}
	if t.Sampler != nil {
		s, err := c.sampler(*t.Sampler)
		if err != nil {
			return 0, err
		}
		t.Sampler = &s
	}
	if t.Source != nil {
		img, ok, err := c.image(*t.Source)
		if err != nil {
			return 0, err
		}
		if ok {
			t.Source = &img
		} else {
			t.Source = nil
		}
	}
	c.mg.doc.Textures = append(c.mg.doc.Textures, t)
	d := int64(len(c.mg.doc.Textures) - 1)
	c.textures[src] = d
	return d, nil
}

func (c *assetCopy) sampler(src int64) (int64, error) {
	if d, ok := c.samplers[src]; ok {
		return d, nil
	}
	s, err := clone(&c.doc.Samplers[src])
	if err != nil {
		return 0, fmt.Errorf("copy sampler %d: %w", src, err)
	}
	c.mg.doc.Samplers = append(c.mg.doc.Samplers, s)
	d := int64(len(c.mg.doc.Samplers) - 1)
	c.samplers[src] = d
	return d, nil
}

// image copies image src. Images stored next to the source asset are
// embedded into the binary buffer. It reports false for images whose data
// could not be read.
func (c *assetCopy) image(src int64) (int64, bool, error) {
	if d, ok := c.images[src]; ok {
		return d, true, nil
	}
	img, err := clone(&c.doc.Images[src])
	if err != nil {
		return 0, false, fmt.Errorf("copy image %d: %w", src, err)
	}
	switch {
	case img.BufferView != nil:
		v := c.view(*img.BufferView)
		img.BufferView = &v
	case img.URI != "" && !strings.HasPrefix(img.URI, "data:"):
		data, ok := c.src.images[src]
		if !ok {
			return 0, false, nil
		}
		v := c.mg.appendView(data, 0, 0)
		img.BufferView = &v
		if img.MimeType == "" {
			img.MimeType = mime.TypeByExtension(path.Ext(img.URI))
		}
		img.URI = ""
	}
	c.mg.doc.Images = append(c.mg.doc.Images, img)
	d := int64(len(c.mg.doc.Images) - 1)
	c.images[src] = d
	return d, true, nil
}

func (c *assetCopy) camera(src int64) (int64, error) {
	if d, ok := c.cameras[src]; ok {
		return d, nil
	}
	cam, err := clone(&c.doc.Cameras[src])
	if err != nil {
		return 0, fmt.Errorf("copy camera %d: %w", src, err)
	}
	c.mg.doc.Cameras = append(c.mg.doc.Cameras, cam)
	d := int64(len(c.mg.doc.Cameras) - 1)
	c.cameras[src] = d
	return d, nil
}

// skin copies skin src. It reports false when a joint or the skeleton root
// was not copied with the scene.
func (c *assetCopy) skin(src int64) (int64, bool, error) {
	if d, ok := c.skins[src]; ok {
		return d, true, nil
	}
	s, err := clone(&c.doc.Skins[src])
	if err != nil {
		return 0, false, fmt.Errorf("copy skin %d: %w", src, err)
	}
	for i, j := range s.Joints {
		d, ok := c.nodes[j]
		if !ok {
			return 0, false, nil
		}
		s.Joints[i] = d
	}
	if s.Skeleton != nil {
		d, ok := c.nodes[*s.Skeleton]
		if !ok {
			return 0, false, nil
		}
		s.Skeleton = &d
	}
	if s.InverseBindMatrices != nil {
		a, err := c.accessor(*s.InverseBindMatrices)
		if err != nil {
			return 0, false, err
		}
		s.InverseBindMatrices = &a
	}
	c.mg.doc.Skins = append(c.mg.doc.Skins, s)
	d := int64(len(c.mg.doc.Skins) - 1)
	c.skins[src] = d
	return d, true, nil
}

// animations copies the animations whose channels all target copied
// nodes. It returns the destination nodes whose TRS is animated.
func (c *assetCopy) animations(logger *slog.Logger) (map[int64]bool, error) {
	animated := make(map[int64]bool)
	for i := range c.doc.Animations {
		src := &c.doc.Animations[i]
		if !c.covers(src) {
			logger.Warn("Animation targets nodes outside the copied scene, dropping it.", "animation", i)
			continue
		}
		a, err := clone(src)
		if err != nil {
			return nil, fmt.Errorf("copy animation %d: %w", i, err)
		}
		for j := range a.Samplers {
			s := &a.Samplers[j]
			if s.Input, err = c.accessor(s.Input); err != nil {
				return nil, err
			}
			if s.Output, err = c.accessor(s.Output); err != nil {
				return nil, err
			}
		}
		for j := range a.Channels {
			t := &a.Channels[j].Target
			d := c.nodes[*t.Node]
			t.Node = &d
			if t.Path != gltf.Pweights {
				animated[d] = true
			}
		}
		c.mg.doc.Animations = append(c.mg.doc.Animations, a)
	}
	return animated, nil
}

func (c *assetCopy) covers(a *gltf.Animation) bool {
	for _, ch := range a.Channels {
		if ch.Target.Node == nil {
			return false
		}
		if _, ok := c.nodes[*ch.Target.Node]; !ok {
			return false
		}
	}
	return true
}
