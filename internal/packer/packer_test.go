package packer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/gltf"
	"github.com/vk/townpack/internal/layout"
	"github.com/vk/townpack/internal/linear"
	"github.com/vk/townpack/internal/store"
	"github.com/vk/townpack/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

// writeTown writes assets under a temp dir and returns a manifest listing them.
func writeTown(t *testing.T, assets map[category.Category][]*testutil.Asset) (*store.Manifest, []string) {
	t.Helper()
	dir := t.TempDir()
	m := store.NewManifest(category.All)
	var paths []string
	for _, c := range category.All {
		for i, a := range assets[c] {
			p := testutil.WriteFile(t, dir, filepath.Join(string(c), string(rune('a'+i))+".glb"), a.GLB(t))
			key := filepath.ToSlash(p)
			m.Add(c, key)
			paths = append(paths, key)
		}
	}
	return m, paths
}

func pack(t *testing.T, m *store.Manifest, s store.ScalingConfig, opts Options) (*Town, Stats) {
	t.Helper()
	town, stats, err := New(gltf.NewLoader(), opts).Pack(context.Background(), m, s)
	require.NoError(t, err)
	require.NoError(t, town.Doc.Check())
	return town, stats
}

func TestPackSingleAssetHalfScale(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {testutil.BoxAsset(0, 6)},
	})
	s := store.ScalingConfig{paths[0]: 0.5}

	// --- Act ---
	town, stats := pack(t, m, s, Options{})

	// --- Assert ---
	assert.Equal(t, Stats{Assets: 1, Instances: 1}, stats)
	require.Len(t, town.Doc.Scenes, 1)
	require.Len(t, town.Doc.Scenes[0].Nodes, 1)
	n := town.Doc.Nodes[town.Doc.Scenes[0].Nodes[0]]
	require.NotNil(t, n.Scale)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, *n.Scale)
	assert.Equal(t, [3]float32{0, 0, 0}, *n.Translation)
	assert.Equal(t, "box", n.Name)
}

func TestPackRoundTripsThroughGLB(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {testutil.BoxAsset(0, 6), testutil.BoxAsset(-1, 1)},
		category.Trees:  {testutil.BoxAsset(0, 12)},
	})
	s := store.ScalingConfig{paths[0]: 0.5, paths[2]: 0.25}
	town, _ := pack(t, m, s, Options{Layout: layout.NewGrid(3, 10, 3)})
	out := filepath.Join(t.TempDir(), store.PackedFile)

	// --- Act ---
	require.NoError(t, WriteGLB(out, town))
	loaded, err := gltf.NewLoader().Load(context.Background(), out)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, loaded.Doc.Buffers, 1)
	require.Len(t, loaded.Doc.Scenes[0].Nodes, 3)
	require.Len(t, loaded.Doc.Meshes, 3)
	for i, mesh := range loaded.Doc.Meshes {
		pos, err := loaded.ReadVec3(mesh.Primitives[0].Attributes[gltf.POSITION])
		require.NoError(t, err, "mesh %d", i)
		assert.Len(t, pos, 8)
	}
	var xs []float32
	for _, r := range loaded.Doc.Scenes[0].Nodes {
		xs = append(xs, loaded.Doc.Nodes[r].Translation[0])
	}
	assert.Equal(t, []float32{-10, 0, 10}, xs)
}

func TestPackIsDeterministic(t *testing.T) {
	t.Parallel()

	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {testutil.BoxAsset(0, 6), testutil.BoxAsset(0, 3), testutil.BoxAsset(0, 9)},
		category.Props:  {testutil.BoxAsset(0, 1)},
	})
	s := store.ScalingConfig{paths[1]: 2}

	encode := func() []byte {
		town, _ := pack(t, m, s, Options{Workers: 4, Layout: layout.Hash{Extent: 100}})
		var buf bytes.Buffer
		require.NoError(t, gltf.EncodeGLB(&buf, town.Doc, town.Bin))
		return buf.Bytes()
	}

	assert.Equal(t, encode(), encode())
}

func TestPackSkipsBrokenAssets(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	noScene := testutil.NewAsset()
	noScene.AddMesh(noScene.AddPositions(testutil.BoxCorners([3]float32{}, [3]float32{1, 1, 1})))
	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {testutil.BoxAsset(0, 2), noScene},
	})
	corrupt := filepath.Join(filepath.Dir(paths[0]), "corrupt.glb")
	require.NoError(t, os.WriteFile(corrupt, []byte("glTF garbage"), 0o644))
	m.Add(category.Props, filepath.ToSlash(corrupt))
	m.Add(category.Cars, filepath.ToSlash(filepath.Join(filepath.Dir(paths[0]), "absent.glb")))

	// --- Act ---
	town, stats := pack(t, m, nil, Options{})

	// --- Assert ---
	assert.Equal(t, Stats{Assets: 1, Skipped: 3, Instances: 1}, stats)
	assert.Len(t, town.Doc.Scenes[0].Nodes, 1)
}

func TestPackMissingScaleDefaultsToOne(t *testing.T) {
	t.Parallel()

	m, _ := writeTown(t, map[category.Category][]*testutil.Asset{category.Cars: {testutil.BoxAsset(0, 1)}})

	town, _ := pack(t, m, store.ScalingConfig{}, Options{})

	n := town.Doc.Nodes[town.Doc.Scenes[0].Nodes[0]]
	assert.Equal(t, [3]float32{1, 1, 1}, *n.Scale)
}

func TestPackBakesExistingTransforms(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	trs := testutil.NewAsset()
	mesh := trs.AddMesh(trs.AddPositions(testutil.BoxCorners([3]float32{}, [3]float32{1, 1, 1})))
	trs.AddScene(trs.AddNode(gltf.Node{
		Mesh:        ptr(mesh),
		Translation: &[3]float32{2, 0, 0},
		Rotation:    &[4]float32{0, 1, 0, 0},
		Scale:       &[3]float32{1, 3, 1},
	}))

	mat := testutil.NewAsset()
	mesh = mat.AddMesh(mat.AddPositions(testutil.BoxCorners([3]float32{}, [3]float32{1, 1, 1})))
	mat.AddScene(mat.AddNode(gltf.Node{
		Mesh:   ptr(mesh),
		Matrix: &[16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 4, 0, 0, 1},
	}))

	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {trs},
		category.Props:  {mat},
	})
	s := store.ScalingConfig{paths[0]: 2, paths[1]: 0.5}
	l := fixed{{10, 0, 0}, {0, 0, 10}}

	// --- Act ---
	town, _ := pack(t, m, s, Options{Layout: l})

	// --- Assert ---
	roots := town.Doc.Scenes[0].Nodes
	a := town.Doc.Nodes[roots[0]]
	assert.Equal(t, [3]float32{14, 0, 0}, *a.Translation)
	assert.Equal(t, [3]float32{2, 6, 2}, *a.Scale)
	assert.Equal(t, [4]float32{0, 1, 0, 0}, *a.Rotation)

	b := town.Doc.Nodes[roots[1]]
	require.NotNil(t, b.Matrix)
	assert.Equal(t, [16]float32{0.5, 0, 0, 0, 0, 0.5, 0, 0, 0, 0, 0.5, 0, 2, 0, 10, 1}, *b.Matrix)
}

// fixed is a layout with precomputed offsets.
type fixed [][3]float32

func (f fixed) Offset(i int, _ string) linear.V3 { return linear.V3(f[i]) }

func TestPackSharesResourcesWithinAnAsset(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Two top-level nodes instancing one mesh with one material.
	a := testutil.NewAsset()
	mesh := a.AddMesh(a.AddPositions(testutil.BoxCorners([3]float32{}, [3]float32{1, 1, 1})))
	a.Doc.Materials = []gltf.Material{{Name: "brick"}}
	a.Doc.Meshes[mesh].Primitives[0].Material = ptr(int64(0))
	child := a.AddNode(gltf.Node{Name: "chimney", Mesh: ptr(mesh)})
	a.AddScene(
		a.AddNode(gltf.Node{Name: "left", Mesh: ptr(mesh), Children: []int64{child}}),
		a.AddNode(gltf.Node{Name: "right", Mesh: ptr(mesh)}),
	)
	m, _ := writeTown(t, map[category.Category][]*testutil.Asset{category.Houses: {a, a}})

	// --- Act ---
	town, stats := pack(t, m, nil, Options{})

	// --- Assert ---
	assert.Equal(t, 4, stats.Instances)
	assert.Len(t, town.Doc.Nodes, 6)
	assert.Len(t, town.Doc.Meshes, 2, "one mesh per source asset")
	assert.Len(t, town.Doc.Materials, 2)
	assert.Len(t, town.Doc.Accessors, 2)
	left := town.Doc.Nodes[town.Doc.Scenes[0].Nodes[0]]
	require.Len(t, left.Children, 1)
	assert.Equal(t, "chimney", town.Doc.Nodes[left.Children[0]].Name)
	assert.Nil(t, town.Doc.Nodes[left.Children[0]].Scale, "only top-level nodes are scaled")
}

func TestPackCopiesAreIndependent(t *testing.T) {
	t.Parallel()

	a := testutil.BoxAsset(0, 1)
	a.Doc.Nodes[0].Translation = &[3]float32{1, 2, 3}
	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{category.Houses: {a, a}})
	s := store.ScalingConfig{paths[0]: 2, paths[1]: 3}

	town, _ := pack(t, m, s, Options{})

	roots := town.Doc.Scenes[0].Nodes
	first, second := town.Doc.Nodes[roots[0]], town.Doc.Nodes[roots[1]]
	assert.Equal(t, [3]float32{2, 4, 6}, *first.Translation)
	assert.Equal(t, [3]float32{3, 6, 9}, *second.Translation)
	assert.NotSame(t, first.Translation, second.Translation)
}

func TestPackWrapsAnimatedRoot(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a := testutil.BoxAsset(0, 1)
	times := a.AddView(make([]byte, 8), 0)
	values := a.AddView(make([]byte, 24), 0)
	a.Doc.Accessors = append(a.Doc.Accessors,
		gltf.Accessor{BufferView: ptr(times), ComponentType: gltf.FLOAT, Count: 2, Type: gltf.SCALAR},
		gltf.Accessor{BufferView: ptr(values), ComponentType: gltf.FLOAT, Count: 2, Type: gltf.VEC3},
	)
	a.Doc.Animations = []gltf.Animation{{
		Name:     "bob",
		Samplers: []gltf.ASampler{{Input: 1, Output: 2}},
		Channels: []gltf.AChannel{{Sampler: 0, Target: gltf.AChannelTarget{Node: ptr(int64(0)), Path: gltf.Ptranslation}}},
	}}
	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{category.Props: {a}})

	// --- Act ---
	town, _ := pack(t, m, store.ScalingConfig{paths[0]: 0.5}, Options{Layout: fixed{{5, 0, 5}}})

	// --- Assert ---
	require.Len(t, town.Doc.Animations, 1)
	root := town.Doc.Nodes[town.Doc.Scenes[0].Nodes[0]]
	assert.Equal(t, "placement", root.Name)
	assert.Equal(t, [3]float32{5, 0, 5}, *root.Translation)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, *root.Scale)
	require.Len(t, root.Children, 1)
	box := town.Doc.Nodes[root.Children[0]]
	assert.Nil(t, box.Scale)
	assert.Equal(t, root.Children[0], *town.Doc.Animations[0].Channels[0].Target.Node)
}

func TestPackUnionsExtensions(t *testing.T) {
	t.Parallel()

	a := testutil.BoxAsset(0, 1)
	a.Doc.ExtensionsUsed = []string{"KHR_materials_unlit", "KHR_texture_transform"}
	b := testutil.BoxAsset(0, 1)
	b.Doc.ExtensionsUsed = []string{"KHR_mesh_quantization", "KHR_materials_unlit"}
	b.Doc.ExtensionsRequired = []string{"KHR_mesh_quantization"}
	m, _ := writeTown(t, map[category.Category][]*testutil.Asset{category.Trees: {a, b}})

	town, _ := pack(t, m, nil, Options{})

	assert.Equal(t, []string{"KHR_materials_unlit", "KHR_mesh_quantization", "KHR_texture_transform"}, town.Doc.ExtensionsUsed)
	assert.Equal(t, []string{"KHR_mesh_quantization"}, town.Doc.ExtensionsRequired)
}

func TestPackEmbedsExternalImages(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	png := []byte("\x89PNG fake")
	testutil.WriteFile(t, dir, "props/bark%.png", png)
	a := testutil.BoxAsset(0, 1)
	a.Doc.Images = []gltf.Image{{URI: "bark%25.png"}}
	a.Doc.Textures = []gltf.Texture{{Source: ptr(int64(0))}}
	a.Doc.Materials = []gltf.Material{{PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 0}}}}
	a.Doc.Meshes[0].Primitives[0].Material = ptr(int64(0))
	p := testutil.WriteFile(t, dir, "props/tree.glb", a.GLB(t))
	m := store.NewManifest(category.All)
	m.Add(category.Props, filepath.ToSlash(p))

	// --- Act ---
	town, _ := pack(t, m, nil, Options{})

	// --- Assert ---
	require.Len(t, town.Doc.Images, 1)
	img := town.Doc.Images[0]
	assert.Empty(t, img.URI)
	assert.Equal(t, "image/png", img.MimeType)
	require.NotNil(t, img.BufferView)
	bv := town.Doc.BufferViews[*img.BufferView]
	assert.Equal(t, png, town.Bin[bv.ByteOffset:bv.ByteOffset+bv.ByteLength])
}

func TestPackTimesOutStalledAsset(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, paths := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {testutil.BoxAsset(0, 1), testutil.BoxAsset(0, 2)},
	})
	release := make(chan struct{})
	defer close(release)
	l := &gltf.Loader{ReadFile: func(name string) ([]byte, error) {
		if filepath.ToSlash(name) == paths[1] {
			<-release
		}
		return os.ReadFile(name)
	}}

	// --- Act ---
	town, stats, err := New(l, Options{AssetTimeout: 50 * time.Millisecond}).Pack(context.Background(), m, nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, Stats{Assets: 1, Skipped: 1, Instances: 1}, stats)
	assert.Len(t, town.Doc.Scenes[0].Nodes, 1)
}

func TestPackCanceled(t *testing.T) {
	m, _ := writeTown(t, map[category.Category][]*testutil.Asset{category.Houses: {testutil.BoxAsset(0, 1)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(gltf.NewLoader(), Options{}).Pack(ctx, m, nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestPackEmptyManifest(t *testing.T) {
	town, stats := pack(t, store.NewManifest(category.All), nil, Options{})

	assert.Zero(t, stats)
	assert.Empty(t, town.Bin)
	assert.Empty(t, town.Doc.Buffers)
	require.Len(t, town.Doc.Scenes, 1)
}

func TestPackRespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var houses []*testutil.Asset
	for range 6 {
		houses = append(houses, testutil.BoxAsset(0, 1))
	}
	m, _ := writeTown(t, map[category.Category][]*testutil.Asset{category.Houses: houses})
	probe := &testutil.ReadProbe{Delay: 20 * time.Millisecond}
	loader := &gltf.Loader{ReadFile: probe.ReadFile}

	// --- Act ---
	_, stats, err := New(loader, Options{Workers: 2}).Pack(context.Background(), m, nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Assets)
	assert.Equal(t, 6, probe.Reads())
	assert.LessOrEqual(t, probe.Peak(), 2)
	assert.GreaterOrEqual(t, probe.Peak(), 1)
}

func TestPackSurvivesOutOfRangeAssets(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	m := store.NewManifest(category.All)
	blobs := testutil.MalformedGLBs(t)
	for name, blob := range blobs {
		m.Add(category.Props, filepath.ToSlash(testutil.WriteFile(t, dir, name+".glb", blob)))
	}

	// --- Act ---
	_, stats, err := New(gltf.NewLoader(), Options{Workers: 2}).Pack(context.Background(), m, nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, len(blobs), stats.Assets+stats.Skipped)
	assert.GreaterOrEqual(t, stats.Skipped, 3)
}

func TestPackSkipsSceneRootWithParent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	nested := testutil.BoxAsset(0, 1)
	child := nested.AddNode(gltf.Node{Name: "child"})
	nested.Doc.Nodes[0].Children = []int64{child}
	nested.Doc.Scenes[0].Nodes = append(nested.Doc.Scenes[0].Nodes, child)
	m, _ := writeTown(t, map[category.Category][]*testutil.Asset{
		category.Houses: {testutil.BoxAsset(0, 1), nested},
	})

	// --- Act ---
	town, stats := pack(t, m, nil, Options{})

	// --- Assert ---
	assert.Equal(t, Stats{Assets: 1, Skipped: 1, Instances: 1}, stats)
	assert.Len(t, town.Doc.Nodes, 1)
}
