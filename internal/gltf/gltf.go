// Package gltf implements the subset of glTF 2.0 needed to measure and
// merge town assets: the JSON document model, .gltf/.glb decoding with
// buffer resolution, accessor decoding and binary glTF output.
package gltf

import (
	"encoding/json"
	"io"
)

// Document is the root glTF object.
type Document struct {
	ExtensionsUsed     []string     `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string     `json:"extensionsRequired,omitempty"`
	Accessors          []Accessor   `json:"accessors,omitempty"`
	Animations         []Animation  `json:"animations,omitempty"`
	Asset              AssetInfo    `json:"asset"`
	Buffers            []Buffer     `json:"buffers,omitempty"`
	BufferViews        []BufferView `json:"bufferViews,omitempty"`
	Cameras            []Camera     `json:"cameras,omitempty"`
	Images             []Image      `json:"images,omitempty"`
	Materials          []Material   `json:"materials,omitempty"`
	Meshes             []Mesh       `json:"meshes,omitempty"`
	Nodes              []Node       `json:"nodes,omitempty"`
	Samplers           []Sampler    `json:"samplers,omitempty"`
	Scene              *int64       `json:"scene,omitempty"`
	Scenes             []Scene      `json:"scenes,omitempty"`
	Skins              []Skin       `json:"skins,omitempty"`
	Textures           []Texture    `json:"textures,omitempty"`
	Extensions         any          `json:"extensions,omitempty"`
	Extras             any          `json:"extras,omitempty"`
}

// AssetInfo is glTF.asset.
type AssetInfo struct {
	Copyright  string `json:"copyright,omitempty"`
	Generator  string `json:"generator,omitempty"`
	Version    string `json:"version"`
	MinVersion string `json:"minVersion,omitempty"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// glTF.accessors' element.
type Accessor struct {
	BufferView    *int64    `json:"bufferView,omitempty"`
	ByteOffset    int64     `json:"byteOffset,omitempty"` // Default is 0.
	ComponentType int64     `json:"componentType"`
	Normalized    bool      `json:"normalized,omitempty"`
	Count         int64     `json:"count"`
	Type          string    `json:"type"`
	Max           []float32 `json:"max,omitempty"`
	Min           []float32 `json:"min,omitempty"`
	Sparse        *Sparse   `json:"sparse,omitempty"`
	Name          string    `json:"name,omitempty"`
	Extensions    any       `json:"extensions,omitempty"`
	Extras        any       `json:"extras,omitempty"`
}

// accessor.sparse.
type Sparse struct {
	Count      int64         `json:"count"`
	Indices    SparseIndices `json:"indices"`
	Values     SparseValues  `json:"values"`
	Extensions any           `json:"extensions,omitempty"`
	Extras     any           `json:"extras,omitempty"`
}

// accessor.sparse.indices.
type SparseIndices struct {
	BufferView    int64 `json:"bufferView"`
	ByteOffset    int64 `json:"byteOffset,omitempty"` // Default is 0.
	ComponentType int64 `json:"componentType"`
	Extensions    any   `json:"extensions,omitempty"`
	Extras        any   `json:"extras,omitempty"`
}

// accessor.sparse.values.
type SparseValues struct {
	BufferView int64 `json:"bufferView"`
	ByteOffset int64 `json:"byteOffset,omitempty"` // Default is 0.
	Extensions any   `json:"extensions,omitempty"`
	Extras     any   `json:"extras,omitempty"`
}

// accessor.*.componentType values.
const (
	BYTE           = 5120
	UNSIGNED_BYTE  = 5121
	SHORT          = 5122
	UNSIGNED_SHORT = 5123
	UNSIGNED_INT   = 5125
	FLOAT          = 5126
)

// accessor.type values.
const (
	SCALAR = "SCALAR"
	VEC2   = "VEC2"
	VEC3   = "VEC3"
	VEC4   = "VEC4"
	MAT2   = "MAT2"
	MAT3   = "MAT3"
	MAT4   = "MAT4"
)

// glTF.animations' element.
type Animation struct {
	Channels   []AChannel `json:"channels"`
	Samplers   []ASampler `json:"samplers"`
	Name       string     `json:"name,omitempty"`
	Extensions any        `json:"extensions,omitempty"`
	Extras     any        `json:"extras,omitempty"`
}

// animation.channels' element.
type AChannel struct {
	Sampler    int64          `json:"sampler"`
	Target     AChannelTarget `json:"target"`
	Extensions any            `json:"extensions,omitempty"`
	Extras     any            `json:"extras,omitempty"`
}

// animation.channel.target.
type AChannelTarget struct {
	Node       *int64 `json:"node,omitempty"`
	Path       string `json:"path"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// animation.samplers' element.
type ASampler struct {
	Input         int64  `json:"input"`
	Interpolation string `json:"interpolation,omitempty"` // Default is "LINEAR".
	Output        int64  `json:"output"`
	Extensions    any    `json:"extensions,omitempty"`
	Extras        any    `json:"extras,omitempty"`
}

// animation.channel.target.path values.
const (
	Ptranslation = "translation"
	Protation    = "rotation"
	Pscale       = "scale"
	Pweights     = "weights"
)

// glTF.buffers' element.
type Buffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int64  `json:"byteLength"`
	Name       string `json:"name,omitempty"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// glTF.bufferViews' element.
type BufferView struct {
	Buffer     int64  `json:"buffer"`
	ByteOffset int64  `json:"byteOffset,omitempty"` // Default is 0.
	ByteLength int64  `json:"byteLength"`
	ByteStride int64  `json:"byteStride,omitempty"` // 0 for tightly packed.
	Target     int64  `json:"target,omitempty"`     // 0 for no hint.
	Name       string `json:"name,omitempty"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// glTF.cameras' element.
type Camera struct {
	Orthographic *Orthographic `json:"orthographic,omitempty"`
	Perspective  *Perspective  `json:"perspective,omitempty"`
	Type         string        `json:"type"`
	Name         string        `json:"name,omitempty"`
	Extensions   any           `json:"extensions,omitempty"`
	Extras       any           `json:"extras,omitempty"`
}

// camera.orthographic.
type Orthographic struct {
	Xmag       float32 `json:"xmag"`
	Ymag       float32 `json:"ymag"`
	Zfar       float32 `json:"zfar"`
	Znear      float32 `json:"znear"`
	Extensions any     `json:"extensions,omitempty"`
	Extras     any     `json:"extras,omitempty"`
}

// camera.perspective.
type Perspective struct {
	AspectRatio float32 `json:"aspectRatio,omitempty"`
	YFOV        float32 `json:"yfov"`
	Zfar        float32 `json:"zfar,omitempty"` // 0 for infinite perspective.
	Znear       float32 `json:"znear"`
	Extensions  any     `json:"extensions,omitempty"`
	Extras      any     `json:"extras,omitempty"`
}

// glTF.images' element.
type Image struct {
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int64 `json:"bufferView,omitempty"`
	Name       string `json:"name,omitempty"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// glTF.materials' element.
type Material struct {
	PBRMetallicRoughness *PBRMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *TextureInfo          `json:"normalTexture,omitempty"`
	OcclusionTexture     *TextureInfo          `json:"occlusionTexture,omitempty"`
	EmissiveTexture      *TextureInfo          `json:"emissiveTexture,omitempty"`
	EmissiveFactor       *[3]float32           `json:"emissiveFactor,omitempty"` // Default is [0, 0, 0].
	AlphaMode            string                `json:"alphaMode,omitempty"`      // Default is "OPAQUE".
	AlphaCutoff          *float32              `json:"alphaCutoff,omitempty"`    // Default is 0.5.
	DoubleSided          bool                  `json:"doubleSided,omitempty"`
	Name                 string                `json:"name,omitempty"`
	Extensions           any                   `json:"extensions,omitempty"`
	Extras               any                   `json:"extras,omitempty"`
}

// material.pbrMetallicRoughness.
type PBRMetallicRoughness struct {
	BaseColorFactor          *[4]float32  `json:"baseColorFactor,omitempty"` // Default is [1, 1, 1, 1].
	BaseColorTexture         *TextureInfo `json:"baseColorTexture,omitempty"`
	MetallicFactor           *float32     `json:"metallicFactor,omitempty"`  // Default is 1.
	RoughnessFactor          *float32     `json:"roughnessFactor,omitempty"` // Default is 1.
	MetallicRoughnessTexture *TextureInfo `json:"metallicRoughnessTexture,omitempty"`
	Extensions               any          `json:"extensions,omitempty"`
	Extras                   any          `json:"extras,omitempty"`
}

// textureInfo, also used for normal and occlusion textures: their extra
// scale/strength fields are kept.
type TextureInfo struct {
	Index      int64    `json:"index"`
	TexCoord   int64    `json:"texCoord,omitempty"` // Default is TEXCOORD_0.
	Scale      *float32 `json:"scale,omitempty"`
	Strength   *float32 `json:"strength,omitempty"`
	Extensions any      `json:"extensions,omitempty"`
	Extras     any      `json:"extras,omitempty"`
}

// glTF.meshes' element.
type Mesh struct {
	Primitives []Primitive `json:"primitives"`
	Weights    []float32   `json:"weights,omitempty"`
	Name       string      `json:"name,omitempty"`
	Extensions any         `json:"extensions,omitempty"`
	Extras     any         `json:"extras,omitempty"`
}

// mesh.primitives' element.
type Primitive struct {
	Attributes map[string]int64   `json:"attributes"`
	Indices    *int64             `json:"indices,omitempty"`
	Material   *int64             `json:"material,omitempty"`
	Mode       *int64             `json:"mode,omitempty"` // Default is 4.
	Targets    []map[string]int64 `json:"targets,omitempty"`
	Extensions any                `json:"extensions,omitempty"`
	Extras     any                `json:"extras,omitempty"`
}

// Primitive attribute holding vertex positions.
const POSITION = "POSITION"

// glTF.nodes' element.
type Node struct {
	Camera      *int64       `json:"camera,omitempty"`
	Children    []int64      `json:"children,omitempty"`
	Skin        *int64       `json:"skin,omitempty"`
	Matrix      *[16]float32 `json:"matrix,omitempty"` // Default is identity.
	Mesh        *int64       `json:"mesh,omitempty"`
	Rotation    *[4]float32  `json:"rotation,omitempty"`    // Default is [0, 0, 0, 1].
	Scale       *[3]float32  `json:"scale,omitempty"`       // Default is [1, 1, 1].
	Translation *[3]float32  `json:"translation,omitempty"` // Default is [0, 0, 0].
	Weights     []float32    `json:"weights,omitempty"`
	Name        string       `json:"name,omitempty"`
	Extensions  any          `json:"extensions,omitempty"`
	Extras      any          `json:"extras,omitempty"`
}

// glTF.samplers' element.
type Sampler struct {
	MagFilter  int64  `json:"magFilter,omitempty"`
	MinFilter  int64  `json:"minFilter,omitempty"`
	WrapS      int64  `json:"wrapS,omitempty"` // Default is 10497.
	WrapT      int64  `json:"wrapT,omitempty"` // Default is 10497.
	Name       string `json:"name,omitempty"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// glTF.scenes' element.
type Scene struct {
	Nodes      []int64 `json:"nodes,omitempty"`
	Name       string  `json:"name,omitempty"`
	Extensions any     `json:"extensions,omitempty"`
	Extras     any     `json:"extras,omitempty"`
}

// glTF.skins' element.
type Skin struct {
	InverseBindMatrices *int64  `json:"inverseBindMatrices,omitempty"`
	Skeleton            *int64  `json:"skeleton,omitempty"`
	Joints              []int64 `json:"joints"`
	Name                string  `json:"name,omitempty"`
	Extensions          any     `json:"extensions,omitempty"`
	Extras              any     `json:"extras,omitempty"`
}

// glTF.textures' element.
type Texture struct {
	Sampler    *int64 `json:"sampler,omitempty"`
	Source     *int64 `json:"source,omitempty"`
	Name       string `json:"name,omitempty"`
	Extensions any    `json:"extensions,omitempty"`
	Extras     any    `json:"extras,omitempty"`
}

// DefaultScene returns the index of the scene to use for the document:
// glTF.scene when set, else the first scene. Documents without scenes have
// none.
func (d *Document) DefaultScene() (int64, bool) {
	switch {
	case d.Scene != nil:
		return *d.Scene, true
	case len(d.Scenes) > 0:
		return 0, true
	default:
		return 0, false
	}
}

// Encode encodes doc into w as JSON.
func Encode(w io.Writer, doc *Document) error {
	return json.NewEncoder(w).Encode(doc)
}

// Decode decodes r into a new Document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, newErr("decode JSON: " + err.Error())
	}
	return &doc, nil
}
