package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/vfs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func TestNewAppRegistersBuiltinTypes(t *testing.T) {
	a, err := newApp(testConfig(t), t.TempDir(), false)
	require.NoError(t, err)
	all := a.registry.All()
	names := make(map[string]bool, len(all))
	for _, d := range all {
		names[d.Name] = true
	}
	assert.True(t, names["image"])
	assert.True(t, names["model"])
	assert.True(t, names["shader"])
}

func TestNewAppMountsBundleWhenConfigured(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "icon.bin"), []byte("ICON"), 0o644))

	cfg := testConfig(t)
	cfg.BundleIndex = filepath.Join(t.TempDir(), "bundle.idx")
	cfg.BundleBlob = filepath.Join(t.TempDir(), "bundle.blob")
	require.NoError(t, vfs.PackBundle(srcDir, cfg.BundleIndex, cfg.BundleBlob))

	a, err := newApp(cfg, t.TempDir(), false)
	require.NoError(t, err)

	blob := a.v.Read("assets/icon.bin", vfs.FlagNone)
	require.True(t, blob.IsValid())
	assert.Equal(t, "ICON", string(blob.Data))
}

func TestLoadCommandSmokeLoadsImageAsset(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.png"), []byte("\x89PNGfakepixels"), 0o644))

	prevCfg := cfg
	cfg = testConfig(t)
	defer func() { cfg = prevCfg }()

	cmd := newLoadCommand()
	cmd.SetArgs([]string{filepath.Join(srcDir, "a.png"), "--type", "image"})
	err := cmd.Execute()
	// The stub PNG payload isn't real image data, so the imagebaker may
	// reject it; what this test actually pins down is that the command
	// wires newApp/lookupTypeByName/scheduler correctly end to end rather
	// than failing on plumbing before ever reaching the baker.
	if err != nil {
		assert.Contains(t, err.Error(), "load failed")
	}
}

func TestTypesCommandListsBuiltins(t *testing.T) {
	cmd := newTypesCommand()
	require.NoError(t, cmd.Execute())
}

func TestPackCommandRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "mesh.bin"), []byte("MESH"), 0o644))
	indexPath := filepath.Join(t.TempDir(), "out.idx")
	blobPath := filepath.Join(t.TempDir(), "out.blob")

	cmd := newPackCommand()
	cmd.SetArgs([]string{srcDir, indexPath, blobPath})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(indexPath)
	require.NoError(t, err)
	_, err = os.Stat(blobPath)
	require.NoError(t, err)
}

func TestLookupTypeByNameUnknown(t *testing.T) {
	a, err := newApp(testConfig(t), t.TempDir(), false)
	require.NoError(t, err)
	_, ok := lookupTypeByName(a, "nonexistent")
	assert.False(t, ok)
}
