package packer

import (
	"github.com/vk/townpack/internal/gltf"
	"github.com/vk/townpack/internal/linear"
)

// place bakes a uniform scale s followed by a translation to offset into
// the local transform of a top-level node.
func place(n *gltf.Node, s float32, offset linear.V3) {
	if n.Matrix != nil {
		m := linear.PlaceMatrix(linear.FromArray(*n.Matrix), s, offset).Array()
		if linear.FromArray(m).IsIdentity() {
			n.Matrix = nil
		} else {
			n.Matrix = &m
		}
		return
	}
	t, sc := linear.V3{}, linear.V3{1, 1, 1}
	if n.Translation != nil {
		t = *n.Translation
	}
	if n.Scale != nil {
		sc = *n.Scale
	}
	t, sc = linear.Place(t, sc, s, offset)
	tt, ss := [3]float32(t), [3]float32(sc)
	n.Translation = &tt
	n.Scale = &ss
}

// wrapper returns a parent node carrying the placement, used when the
// top-level node's own transform is animated.
func wrapper(s float32, offset linear.V3) gltf.Node {
	t, sc := [3]float32(offset), [3]float32{s, s, s}
	return gltf.Node{Name: "placement", Translation: &t, Scale: &sc}
}
