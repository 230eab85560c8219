package gltf

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure reported by Check.
var ErrInvalid = errors.New("gltf: invalid document")

func newErr(reason string) error {
	return errors.New("gltf: " + reason)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

func inRange(idx int64, n int) bool { return idx >= 0 && idx < int64(n) }

func optInRange(idx *int64, n int) bool { return idx == nil || inRange(*idx, n) }

// Check checks that every index in d refers to an existing object and that
// the node hierarchy is a forest. Code that walks a checked document may
// index its arrays without further bounds checks.
func (d *Document) Check() error {
	if d.Asset.Version == "" {
		return invalid("missing asset.version")
	}
	if !optInRange(d.Scene, len(d.Scenes)) {
		return invalid("scene index %d out of range", *d.Scene)
	}
	for i, s := range d.Scenes {
		for _, n := range s.Nodes {
			if !inRange(n, len(d.Nodes)) {
				return invalid("scenes[%d] node index %d out of range", i, n)
			}
		}
	}
	for i, b := range d.Buffers {
		if b.ByteLength < 0 {
			return invalid("buffers[%d].byteLength %d", i, b.ByteLength)
		}
	}
	for i := range d.BufferViews {
		bv := &d.BufferViews[i]
		if !inRange(bv.Buffer, len(d.Buffers)) {
			return invalid("bufferViews[%d].buffer out of range", i)
		}
		if bv.ByteOffset < 0 || bv.ByteLength < 1 {
			return invalid("bufferViews[%d] has invalid byte range", i)
		}
		if bv.ByteStride != 0 && (bv.ByteStride < 4 || bv.ByteStride > 252 || bv.ByteStride%4 != 0) {
			return invalid("bufferViews[%d].byteStride %d", i, bv.ByteStride)
		}
	}
	for i := range d.Accessors {
		if err := d.Accessors[i].check(d); err != nil {
			return fmt.Errorf("accessors[%d]: %w", i, err)
		}
	}
	for i, m := range d.Meshes {
		for j, p := range m.Primitives {
			for name, a := range p.Attributes {
				if !inRange(a, len(d.Accessors)) {
					return invalid("meshes[%d].primitives[%d] attribute %s out of range", i, j, name)
				}
			}
			for _, t := range p.Targets {
				for name, a := range t {
					if !inRange(a, len(d.Accessors)) {
						return invalid("meshes[%d].primitives[%d] target %s out of range", i, j, name)
					}
				}
			}
			if !optInRange(p.Indices, len(d.Accessors)) || !optInRange(p.Material, len(d.Materials)) {
				return invalid("meshes[%d].primitives[%d] index out of range", i, j)
			}
		}
	}
	for i := range d.Materials {
		for _, ti := range d.Materials[i].TextureInfos() {
			if !inRange(ti.Index, len(d.Textures)) {
				return invalid("materials[%d] texture index %d out of range", i, ti.Index)
			}
		}
	}
	for i, t := range d.Textures {
		if !optInRange(t.Sampler, len(d.Samplers)) || !optInRange(t.Source, len(d.Images)) {
			return invalid("textures[%d] index out of range", i)
		}
	}
	for i, img := range d.Images {
		if !optInRange(img.BufferView, len(d.BufferViews)) {
			return invalid("images[%d].bufferView out of range", i)
		}
	}
	for i, s := range d.Skins {
		if !optInRange(s.InverseBindMatrices, len(d.Accessors)) || !optInRange(s.Skeleton, len(d.Nodes)) {
			return invalid("skins[%d] index out of range", i)
		}
		for _, j := range s.Joints {
			if !inRange(j, len(d.Nodes)) {
				return invalid("skins[%d] joint %d out of range", i, j)
			}
		}
	}
	for i, a := range d.Animations {
		for _, s := range a.Samplers {
			if !inRange(s.Input, len(d.Accessors)) || !inRange(s.Output, len(d.Accessors)) {
				return invalid("animations[%d] sampler accessor out of range", i)
			}
		}
		for _, c := range a.Channels {
			if !inRange(c.Sampler, len(a.Samplers)) || !optInRange(c.Target.Node, len(d.Nodes)) {
				return invalid("animations[%d] channel index out of range", i)
			}
		}
	}
	return d.checkNodes()
}

// checkNodes validates node references, that no node has two parents or
// is its own ancestor, and that scenes list only root nodes.
func (d *Document) checkNodes() error {
	parent := make([]int64, len(d.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, n := range d.Nodes {
		if !optInRange(n.Mesh, len(d.Meshes)) || !optInRange(n.Skin, len(d.Skins)) || !optInRange(n.Camera, len(d.Cameras)) {
			return invalid("nodes[%d] index out of range", i)
		}
		for _, c := range n.Children {
			if !inRange(c, len(d.Nodes)) {
				return invalid("nodes[%d] child %d out of range", i, c)
			}
			if parent[c] != -1 {
				return invalid("nodes[%d] has more than one parent", c)
			}
			parent[c] = int64(i)
		}
	}
	for i := range d.Nodes {
		p := int64(i)
		for steps := 0; p != -1; steps++ {
			if steps > len(d.Nodes) {
				return invalid("nodes[%d] is part of a cycle", i)
			}
			p = parent[p]
		}
	}
	for i, s := range d.Scenes {
		for _, n := range s.Nodes {
			if parent[n] != -1 {
				return invalid("scenes[%d] node %d is not a root node", i, n)
			}
		}
	}
	return nil
}

func (a *Accessor) check(d *Document) error {
	if !optInRange(a.BufferView, len(d.BufferViews)) {
		return invalid("bufferView out of range")
	}
	if a.ByteOffset < 0 {
		return invalid("negative byteOffset")
	}
	if componentSize(a.ComponentType) == 0 {
		return invalid("componentType %d", a.ComponentType)
	}
	if a.Count < 1 {
		return invalid("count %d", a.Count)
	}
	if componentCount(a.Type) == 0 {
		return invalid("type %q", a.Type)
	}
	if s := a.Sparse; s != nil {
		if s.Count < 1 || s.Count > a.Count {
			return invalid("sparse.count %d", s.Count)
		}
		if !inRange(s.Indices.BufferView, len(d.BufferViews)) || !inRange(s.Values.BufferView, len(d.BufferViews)) {
			return invalid("sparse bufferView out of range")
		}
		if s.Indices.ByteOffset < 0 || s.Values.ByteOffset < 0 {
			return invalid("negative sparse byteOffset")
		}
		switch s.Indices.ComponentType {
		case UNSIGNED_BYTE, UNSIGNED_SHORT, UNSIGNED_INT:
		default:
			return invalid("sparse.indices.componentType %d", s.Indices.ComponentType)
		}
	}
	return nil
}

// TextureInfos returns pointers to every texture reference held by m, so
// callers can rewrite texture indices in place.
func (m *Material) TextureInfos() []*TextureInfo {
	var out []*TextureInfo
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		out = append(out, pbr.BaseColorTexture, pbr.MetallicRoughnessTexture)
	}
	out = append(out, m.NormalTexture, m.OcclusionTexture, m.EmissiveTexture)
	n := 0
	for _, ti := range out {
		if ti != nil {
			out[n] = ti
			n++
		}
	}
	return out[:n]
}

func componentSize(ct int64) int64 {
	switch ct {
	case BYTE, UNSIGNED_BYTE:
		return 1
	case SHORT, UNSIGNED_SHORT:
		return 2
	case UNSIGNED_INT, FLOAT:
		return 4
	default:
		return 0
	}
}

func componentCount(typ string) int64 {
	switch typ {
	case SCALAR:
		return 1
	case VEC2:
		return 2
	case VEC3:
		return 3
	case VEC4, MAT2:
		return 4
	case MAT3:
		return 9
	case MAT4:
		return 16
	default:
		return 0
	}
}
