package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("assets", "towns", "town1", "assetsManifest.json"), cfg.ManifestPath(DefaultTown))
	assert.Equal(t, filepath.Join("assets", "towns", "town1", "scalingConfig.json"), cfg.ScalingPath(DefaultTown))
	assert.Equal(t, filepath.Join("assets", "towns", "town1", "packedTown.glb"), cfg.PackedPath(DefaultTown))
}

func TestLoadPipelineFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeFile(t, `
		root       = "data/towns"
		categories = ["houses", "cars"]
		workers    = 3
		asset_timeout = "5s"

		scale {
			policy        = "humanoid-clamped"
			target_height = 4.5
		}

		layout {
			kind    = "hash"
			extent  = 200
		}

		output {
			packed = "${town}-packed.glb"
		}
	`)

	// --- Act ---
	cfg, err := Load(context.Background(), Options{File: path, Town: "harbor", Environ: map[string]string{}})

	// --- Assert ---
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "data/towns", cfg.Root)
	assert.Equal(t, []string{"houses", "cars"}, cfg.Categories)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.AssetTimeout)
	assert.Equal(t, "humanoid-clamped", cfg.Policy)
	assert.Equal(t, 4.5, cfg.TargetHeight)
	assert.Equal(t, 0.1, cfg.MinHeight, "unset attributes keep their default")
	assert.Equal(t, "hash", cfg.Layout)
	assert.Equal(t, 200.0, cfg.Extent)
	assert.Equal(t, "harbor-packed.glb", cfg.PackedFile)
	assert.Equal(t, Default().ManifestFile, cfg.ManifestFile)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `
		workers = 3
		scale {
			policy = "manual"
		}
	`)
	environ := map[string]string{
		"TOWNPACK_WORKERS":    "7",
		"TOWNPACK_LOG_LEVEL":  "debug",
		"TOWNPACK_CATEGORIES": "trees,props",
	}

	cfg, err := Load(context.Background(), Options{File: path, Town: "t", Environ: environ})

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"trees", "props"}, cfg.Categories)
	assert.Equal(t, "manual", cfg.Policy, "file value survives when no variable is set")
}

func TestParseEnvError(t *testing.T) {
	cfg := Default()

	err := ParseEnv(&cfg, map[string]string{"TOWNPACK_WORKERS": "many"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestParseEnvFromProcess(t *testing.T) {
	t.Setenv("TOWNPACK_ROOT", "/srv/towns")
	cfg := Default()

	require.NoError(t, ParseEnv(&cfg, nil))

	assert.Equal(t, "/srv/towns", cfg.Root)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
	}{
		{name: "syntax", body: `root = `},
		{name: "unknown attribute", body: `colour = "red"`},
		{name: "wrong type", body: `workers = "many"`},
		{name: "bad duration", body: `asset_timeout = "soon"`},
		{name: "unknown variable", body: `root = "${city}"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), Options{File: writeFile(t, tc.body), Environ: map[string]string{}})
			require.Error(t, err)
		})
	}

	_, err := Load(context.Background(), Options{File: filepath.Join(t.TempDir(), "absent.hcl")})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "empty root", mutate: func(c *Config) { c.Root = "" }},
		{name: "unknown category", mutate: func(c *Config) { c.Categories = []string{"boats"} }},
		{name: "unknown policy", mutate: func(c *Config) { c.Policy = "guess" }},
		{name: "negative target", mutate: func(c *Config) { c.TargetHeight = -1 }},
		{name: "inverted clamp", mutate: func(c *Config) { c.MinHeight, c.MaxHeight = 10, 1 }},
		{name: "unknown layout", mutate: func(c *Config) { c.Layout = "spiral" }},
		{name: "zero columns", mutate: func(c *Config) { c.Columns = 0 }},
		{name: "nested output", mutate: func(c *Config) { c.PackedFile = "../out.glb" }},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "negative timeout", mutate: func(c *Config) { c.AssetTimeout = -time.Second }},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "loud" }},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateTown(t *testing.T) {
	for _, ok := range []string{"town1", "Old-Harbor", "v2.1"} {
		require.NoError(t, ValidateTown(ok), ok)
	}
	for _, bad := range []string{"", "..", "../etc", "a/b", ".hidden"} {
		require.Error(t, ValidateTown(bad), bad)
	}
}
