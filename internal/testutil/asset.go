// Package testutil builds glTF fixtures and town directory trees for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/townpack/internal/gltf"
)

// Asset is an in-memory builder for small glTF documents with a single
// binary buffer.
type Asset struct {
	Doc gltf.Document
	bin []byte
}

// NewAsset creates an empty asset with a valid asset header.
func NewAsset() *Asset {
	a := &Asset{}
	a.Doc.Asset.Version = "2.0"
	a.Doc.Asset.Generator = "townpack testutil"
	return a
}

func ptr[T any](v T) *T { return &v }

// AddView appends raw bytes as a new buffer view and returns its index.
func (a *Asset) AddView(data []byte, stride int64) int64 {
	for len(a.bin)%4 != 0 {
		a.bin = append(a.bin, 0)
	}
	a.Doc.BufferViews = append(a.Doc.BufferViews, gltf.BufferView{
		ByteOffset: int64(len(a.bin)),
		ByteLength: int64(len(data)),
		ByteStride: stride,
	})
	a.bin = append(a.bin, data...)
	return int64(len(a.Doc.BufferViews) - 1)
}

// AddPositions appends a tightly packed FLOAT VEC3 accessor. The cached
// min/max are deliberately left unset.
func (a *Asset) AddPositions(pos [][3]float32) int64 {
	var buf bytes.Buffer
	for _, p := range pos {
		for _, c := range p {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(c))
		}
	}
	view := a.AddView(buf.Bytes(), 0)
	a.Doc.Accessors = append(a.Doc.Accessors, gltf.Accessor{
		BufferView:    ptr(view),
		ComponentType: gltf.FLOAT,
		Count:         int64(len(pos)),
		Type:          gltf.VEC3,
	})
	return int64(len(a.Doc.Accessors) - 1)
}

// AddMesh appends a mesh with one triangle primitive per position accessor.
func (a *Asset) AddMesh(positions ...int64) int64 {
	var m gltf.Mesh
	for _, p := range positions {
		m.Primitives = append(m.Primitives, gltf.Primitive{Attributes: map[string]int64{gltf.POSITION: p}})
	}
	a.Doc.Meshes = append(a.Doc.Meshes, m)
	return int64(len(a.Doc.Meshes) - 1)
}

// AddNode appends n and returns its index.
func (a *Asset) AddNode(n gltf.Node) int64 {
	a.Doc.Nodes = append(a.Doc.Nodes, n)
	return int64(len(a.Doc.Nodes) - 1)
}

// AddScene appends a scene with the given root nodes. The first scene added
// becomes the default scene.
func (a *Asset) AddScene(nodes ...int64) int64 {
	a.Doc.Scenes = append(a.Doc.Scenes, gltf.Scene{Nodes: nodes})
	idx := int64(len(a.Doc.Scenes) - 1)
	if a.Doc.Scene == nil {
		a.Doc.Scene = ptr(idx)
	}
	return idx
}

// GLB encodes the asset as a binary glTF blob.
func (a *Asset) GLB(t testing.TB) []byte {
	t.Helper()
	return a.GLBWith(t, nil)
}

// GLBWith encodes the asset like GLB, letting edit change the final
// document, buffer declaration included, before it is written.
func (a *Asset) GLBWith(t testing.TB, edit func(*gltf.Document)) []byte {
	t.Helper()
	doc := a.Doc
	doc.Accessors = append([]gltf.Accessor(nil), a.Doc.Accessors...)
	doc.BufferViews = append([]gltf.BufferView(nil), a.Doc.BufferViews...)
	if len(a.bin) > 0 {
		doc.Buffers = []gltf.Buffer{{ByteLength: int64(len(a.bin))}}
	}
	if edit != nil {
		edit(&doc)
	}
	var buf bytes.Buffer
	require.NoError(t, gltf.EncodeGLB(&buf, &doc, a.bin))
	return buf.Bytes()
}

// Model returns the asset as a loaded model without touching the disk.
func (a *Asset) Model(t testing.TB) *gltf.Model {
	t.Helper()
	doc, bin, err := gltf.DecodeGLB(a.GLB(t))
	require.NoError(t, err)
	require.NoError(t, doc.Check())
	m := &gltf.Model{Path: "memory.glb", Doc: doc}
	if len(doc.Buffers) > 0 {
		m.Buffers = [][]byte{bin[:doc.Buffers[0].ByteLength]}
	}
	return m
}

// BoxCorners returns the eight corners of the box spanning min and max.
func BoxCorners(min, max [3]float32) [][3]float32 {
	out := make([][3]float32, 0, 8)
	for _, x := range []float32{min[0], max[0]} {
		for _, y := range []float32{min[1], max[1]} {
			for _, z := range []float32{min[2], max[2]} {
				out = append(out, [3]float32{x, y, z})
			}
		}
	}
	return out
}

// BoxAsset builds a one-node asset whose mesh spans [-1, 1] on X and Z and
// [minY, maxY] on Y.
func BoxAsset(minY, maxY float32) *Asset {
	a := NewAsset()
	mesh := a.AddMesh(a.AddPositions(BoxCorners([3]float32{-1, minY, -1}, [3]float32{1, maxY, 1})))
	a.AddScene(a.AddNode(gltf.Node{Name: "box", Mesh: ptr(mesh)}))
	return a
}

// EmptyAsset builds an asset with a scene holding one node and no mesh.
func EmptyAsset() *Asset {
	a := NewAsset()
	a.AddScene(a.AddNode(gltf.Node{Name: "empty"}))
	return a
}

// WriteFile writes data to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
