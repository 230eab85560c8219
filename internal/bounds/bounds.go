// Package bounds computes axis-aligned bounding boxes of glTF assets from
// their raw vertex positions.
package bounds

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/vk/townpack/internal/gltf"
	"github.com/vk/townpack/internal/linear"
)

// Box is an axis-aligned bounding box. Min and Max are meaningful only when
// Valid is set; callers must branch on Valid, never on a zero Min/Max.
type Box struct {
	Min, Max linear.V3
	Valid    bool
}

// Empty returns the starting point of a min/max fold.
func Empty() Box {
	inf := math32.Inf(1)
	return Box{
		Min: linear.V3{inf, inf, inf},
		Max: linear.V3{-inf, -inf, -inf},
	}
}

// Extend grows b to include p. Points with a non-finite component are
// ignored.
func (b *Box) Extend(p linear.V3) {
	if !p.Finite() {
		return
	}
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
	b.Valid = true
}

// Height returns the extent along Y. It is 0 for an invalid box.
func (b Box) Height() float32 {
	if !b.Valid {
		return 0
	}
	return b.Max[1] - b.Min[1]
}

// Size returns the extent along every axis.
func (b Box) Size() linear.V3 {
	if !b.Valid {
		return linear.V3{}
	}
	return b.Max.Sub(b.Min)
}

func (b Box) String() string {
	if !b.Valid {
		return "invalid"
	}
	return fmt.Sprintf("min=%v max=%v", b.Min, b.Max)
}

// Extract folds the POSITION data of every mesh primitive reachable from the
// model's default scene. Documents without scenes fall back to all meshes.
// Each mesh is read once even when several nodes instance it. Positions are
// taken in mesh space; node transforms are not applied. Accessor min/max
// are never read: authoring tools do not fill them reliably.
func Extract(m *gltf.Model) (Box, error) {
	box := Empty()
	for _, mesh := range meshes(m.Doc) {
		for _, p := range m.Doc.Meshes[mesh].Primitives {
			acc, ok := p.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			pos, err := m.ReadVec3(acc)
			if err != nil {
				return Box{}, fmt.Errorf("mesh %d: %w", mesh, err)
			}
			for _, v := range pos {
				box.Extend(linear.V3(v))
			}
		}
	}
	if !box.Valid {
		return Box{}, nil
	}
	return box, nil
}

// meshes returns the mesh indices referenced from the default scene in
// traversal order, without duplicates.
func meshes(d *gltf.Document) []int64 {
	var out []int64
	if len(d.Scenes) == 0 {
		for i := range d.Meshes {
			out = append(out, int64(i))
		}
		return out
	}
	s, _ := d.DefaultScene()
	seen := make(map[int64]bool)
	var visit func(n int64)
	visit = func(n int64) {
		node := &d.Nodes[n]
		if node.Mesh != nil && !seen[*node.Mesh] {
			seen[*node.Mesh] = true
			out = append(out, *node.Mesh)
		}
		for _, c := range node.Children {
			visit(c)
		}
	}
	for _, n := range d.Scenes[s].Nodes {
		visit(n)
	}
	return out
}
