package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/config"
	"github.com/vk/townpack/internal/gltf"
	"github.com/vk/townpack/internal/store"
	"github.com/vk/townpack/internal/testutil"
)

const town = "town1"

// fixture is a town directory tree plus an App configured for it.
type fixture struct {
	root string
	dir  string
	logs *testutil.SafeBuffer
	cfg  config.Config
}

func newFixture(t *testing.T, assets map[string]*testutil.Asset) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{root: filepath.Join(base, "assets", "towns"), logs: &testutil.SafeBuffer{}}
	f.dir = testutil.WriteTown(t, f.root, town, assets)
	f.cfg = config.Default()
	f.cfg.Root = f.root
	f.cfg.Defaults = filepath.Join(base, store.DefaultsFile)
	f.cfg.LogLevel = "debug"
	f.cfg.Workers = 2
	return f
}

func (f *fixture) defaults(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.cfg.Defaults, []byte(body), 0o644))
}

func (f *fixture) app(t *testing.T, stage Stage) *App {
	t.Helper()
	cfg, err := NewConfig(Config{Stage: stage, Town: town, Pipeline: f.cfg})
	require.NoError(t, err)
	return NewApp(f.logs, cfg, gltf.NewLoader())
}

// key returns the manifest key of an asset in the fixture town.
func (f *fixture) key(rel string) string {
	return filepath.ToSlash(f.dir) + "/" + rel
}

func TestGenerateThenPack(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t, map[string]*testutil.Asset{
		"houses/house.glb": testutil.BoxAsset(0, 6),
	})
	ctx := context.Background()

	// --- Act ---
	gen, err := f.app(t, StageGenerate).Generate(ctx)
	require.NoError(t, err)
	stats, err := f.app(t, StagePack).Pack(ctx)
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, 0.5, gen.Scaling[f.key("houses/house.glb")])
	assert.Equal(t, []string{f.key("houses/house.glb")}, gen.Manifest.Paths(category.Houses))
	assert.Equal(t, 1, stats.Instances)

	packed, err := gltf.NewLoader().Load(ctx, filepath.Join(f.dir, store.PackedFile))
	require.NoError(t, err)
	roots := packed.Doc.Scenes[0].Nodes
	require.Len(t, roots, 1)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, *packed.Doc.Nodes[roots[0]].Scale)
	assert.Equal(t, town, packed.Doc.Scenes[0].Name)
}

func TestGenerateWritesAllCategories(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t, map[string]*testutil.Asset{
		"houses/b.glb":  testutil.BoxAsset(0, 3),
		"houses/a.glb":  testutil.BoxAsset(0, 6),
		"trees/oak.glb": testutil.BoxAsset(0, 12),
	})

	// --- Act ---
	_, err := f.app(t, StageGenerate).Generate(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	m, err := store.ReadManifest(filepath.Join(f.dir, store.ManifestFile), category.All)
	require.NoError(t, err)
	assert.Equal(t, category.All, m.Categories())
	assert.Equal(t, []string{f.key("houses/a.glb"), f.key("houses/b.glb")}, m.Paths(category.Houses))
	assert.Empty(t, m.Paths(category.Props))
	s, err := store.ReadScaling(filepath.Join(f.dir, store.ScalingFile))
	require.NoError(t, err)
	assert.Equal(t, store.ScalingConfig{
		f.key("houses/a.glb"):  0.5,
		f.key("houses/b.glb"):  1,
		f.key("trees/oak.glb"): 0.25,
	}, s)
	assert.Contains(t, f.logs.String(), "Category folder missing")
}

func TestGenerateIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]*testutil.Asset{
		"houses/a.glb": testutil.BoxAsset(0, 7),
		"cars/van.glb": testutil.BoxAsset(0, 2),
		"props/x.glb":  testutil.EmptyAsset(),
	})
	read := func() (string, string) {
		_, err := f.app(t, StageGenerate).Generate(context.Background())
		require.NoError(t, err)
		m, err := os.ReadFile(filepath.Join(f.dir, store.ManifestFile))
		require.NoError(t, err)
		s, err := os.ReadFile(filepath.Join(f.dir, store.ScalingFile))
		require.NoError(t, err)
		return string(m), string(s)
	}

	m1, s1 := read()
	m2, s2 := read()

	assert.Equal(t, m1, m2)
	assert.Equal(t, s1, s2)
}

func TestGenerateMissingDefaultsIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]*testutil.Asset{"houses/a.glb": testutil.BoxAsset(0, 1)})
	f.cfg.Policy = "category-relative"

	_, err := f.app(t, StageGenerate).Generate(context.Background())

	require.ErrorIs(t, err, store.ErrDefaultsMissing)
	_, statErr := os.Stat(filepath.Join(f.dir, store.ManifestFile))
	require.ErrorIs(t, statErr, os.ErrNotExist, "nothing is written on a fatal error")
}

func TestGenerateSkipsCategoryWithoutDefault(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t, map[string]*testutil.Asset{
		"houses/a.glb":  testutil.BoxAsset(0, 2),
		"trees/oak.glb": testutil.BoxAsset(0, 10),
	})
	f.cfg.Policy = "humanoid-clamped"
	f.defaults(t, `{"humanoidHeight": 2, "houses": 4}`)

	// --- Act ---
	res, err := f.app(t, StageGenerate).Generate(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{f.key("houses/a.glb")}, res.Manifest.Paths(category.Houses))
	assert.Equal(t, []string{}, res.Manifest.Paths(category.Trees))
	assert.Equal(t, store.ScalingConfig{f.key("houses/a.glb"): 0.25}, res.Scaling)
	assert.Contains(t, f.logs.String(), "category=trees")
}

func TestGenerateSkipsBrokenAssets(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t, map[string]*testutil.Asset{"houses/good.glb": testutil.BoxAsset(0, 3)})
	testutil.WriteFile(t, f.dir, "houses/bad.glb", []byte("not a model"))

	// --- Act ---
	res, err := f.app(t, StageGenerate).Generate(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{f.key("houses/good.glb")}, res.Manifest.Paths(category.Houses))
	assert.NotContains(t, res.Scaling, f.key("houses/bad.glb"))
	assert.Contains(t, f.logs.String(), "Failed to load asset")
}

func TestGenerateSkipsOutOfRangeAssets(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t, map[string]*testutil.Asset{"houses/good.glb": testutil.BoxAsset(0, 3)})
	blobs := testutil.MalformedGLBs(t)
	i := 0
	for _, blob := range blobs {
		testutil.WriteFile(t, f.dir, fmt.Sprintf("houses/bad%d.glb", i), blob)
		i++
	}

	// --- Act ---
	res, err := f.app(t, StageGenerate).Generate(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, len(blobs), res.Skipped)
	assert.Equal(t, []string{f.key("houses/good.glb")}, res.Manifest.Paths(category.Houses))
	assert.Equal(t, store.ScalingConfig{f.key("houses/good.glb"): 1}, res.Scaling)
	assert.Contains(t, f.logs.String(), "Failed to load asset")
	assert.Contains(t, f.logs.String(), "Failed to read asset geometry")
}

func TestGenerateCategoryRelative(t *testing.T) {
	t.Parallel()

	// The policy ignores geometry, so assets are not opened at all.
	f := newFixture(t, map[string]*testutil.Asset{
		"trees/a.glb": testutil.BoxAsset(0, 1),
		"trees/b.glb": testutil.BoxAsset(0, 40),
	})
	testutil.WriteFile(t, f.dir, "trees/c.glb", []byte("unreadable"))
	f.cfg.Policy = "category-relative"
	f.cfg.Defaults = filepath.Join(filepath.Dir(f.cfg.Defaults), "scalingDefaults.yaml")
	f.defaults(t, "humanoidHeight: 1.8\ntrees: 9\n")

	res, err := f.app(t, StageGenerate).Generate(context.Background())

	require.NoError(t, err)
	assert.Len(t, res.Scaling, 3)
	for p, s := range res.Scaling {
		assert.Equal(t, 0.2, s, p)
	}
}

func TestGenerateManual(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]*testutil.Asset{"cars/van.glb": testutil.BoxAsset(0, 3)})
	testutil.WriteFile(t, f.dir, "cars/bad.glb", []byte("{"))
	f.cfg.Policy = "manual"
	f.defaults(t, `{"cars": 0.75}`)

	res, err := f.app(t, StageGenerate).Generate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, store.ScalingConfig{f.key("cars/van.glb"): 0.75}, res.Scaling)
	assert.Equal(t, 1, res.Skipped, "manual still opens every asset")
}

func TestPackWithoutManifestFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	_, err := f.app(t, StagePack).Pack(context.Background())

	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPackWithoutScalingUsesOne(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t, map[string]*testutil.Asset{"props/crate.glb": testutil.BoxAsset(0, 1)})
	_, err := f.app(t, StageGenerate).Generate(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, store.ScalingFile)))

	// --- Act ---
	stats, err := f.app(t, StagePack).Pack(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Assets)
	assert.Contains(t, f.logs.String(), "Scaling config missing")
}

func TestRunAddsTownToLogs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]*testutil.Asset{"houses/a.glb": testutil.BoxAsset(0, 1)})

	require.NoError(t, f.app(t, StageGenerate).Run(context.Background()))
	require.NoError(t, f.app(t, StagePack).Run(context.Background()))

	assert.Contains(t, f.logs.String(), "town=town1")
	_, err := os.Stat(filepath.Join(f.dir, store.PackedFile))
	require.NoError(t, err)
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	valid := config.Default()
	invalid := config.Default()
	invalid.Workers = 0

	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "generate", cfg: Config{Stage: StageGenerate, Town: "town1", Pipeline: valid}},
		{name: "pack", cfg: Config{Stage: StagePack, Town: "harbor", Pipeline: valid}},
		{name: "unknown stage", cfg: Config{Stage: "render", Town: "town1", Pipeline: valid}, wantErr: true},
		{name: "empty town", cfg: Config{Stage: StagePack, Pipeline: valid}, wantErr: true},
		{name: "town escapes root", cfg: Config{Stage: StagePack, Town: "../x", Pipeline: valid}, wantErr: true},
		{name: "invalid pipeline", cfg: Config{Stage: StagePack, Town: "town1", Pipeline: invalid}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg, *cfg)
		})
	}
}
