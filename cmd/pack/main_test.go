package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/townpack/internal/cli"
	"github.com/vk/townpack/internal/store"
	"github.com/vk/townpack/internal/testutil"
)

func TestRunHelp(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, run(context.Background(), &out, []string{"-h"}))
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "townpack-pack")
}

func TestRunUsageError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"town1", "town2"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestRunMissingManifest(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := filepath.Join(t.TempDir(), "towns")
	testutil.WriteTown(t, root, "town1", map[string]*testutil.Asset{"houses/a.glb": testutil.BoxAsset(0, 1)})
	args := []string{"-root", root}

	// --- Act ---
	err := run(context.Background(), &bytes.Buffer{}, args)

	// --- Assert ---
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(root, "town1", store.PackedFile))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}
