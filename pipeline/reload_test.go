package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/baker"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/typereg"
	"github.com/kestrelengine/assetpipe/vfs"
)

// reloadBaker rebakes whatever bytes are on disk and lets the test control
// whether Reload accepts the new bytes, exercising both halves of the
// baker.Baker.Reload contract.
type reloadBaker struct {
	accept bool
}

func (b *reloadBaker) Bake(_ context.Context, in baker.Input, bld *baker.Builder) (bool, string) {
	bld.SetObjData(append([]byte("R:"), in.Source...))
	return true, ""
}

func (b *reloadBaker) Reload(newData, oldData []byte) bool { return b.accept }

func newWatchingTestManager(t *testing.T, srcDir string) *Manager {
	t.Helper()
	v := vfs.New(nil)
	require.NoError(t, v.Mount(srcDir, "data", true))

	cfg := config.Default()
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	store, err := cachestore.Open(cfg)
	require.NoError(t, err)

	registry := typereg.New()
	db := asset.NewDatabase()
	groups := asset.NewGroupPool()
	return New(db, groups, registry, v, store, cfg, NullGPUBackend{})
}

func TestReloadHandleCommitsAcceptedReload(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "a.bin", "v1")
	m := newTestManager(t, srcDir)
	b := &reloadBaker{accept: true}
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeA, Name: "typea", Baker: b}))

	groupHandle := m.Groups.CreateGroup()
	group, _ := m.Groups.Get(groupHandle)
	handle, _ := m.DB.CreateOrFetchHandle(asset.Params{TypeID: testTypeA, Path: "data/a.bin"})
	group.AddToLoadQueue(handle)
	m.runLoadGroup(groupHandle)
	require.Equal(t, "R:v1", string(m.DB.GetObjData(handle)))

	writeSourceFile(t, srcDir, "a.bin", "v2")
	m.reloadHandle(handle)

	assert.Equal(t, "R:v2", string(m.DB.GetObjData(handle)))
}

func TestReloadHandleKeepsOldDataWhenRejected(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "a.bin", "v1")
	m := newTestManager(t, srcDir)
	b := &reloadBaker{accept: false}
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeA, Name: "typea", Baker: b}))

	groupHandle := m.Groups.CreateGroup()
	group, _ := m.Groups.Get(groupHandle)
	handle, _ := m.DB.CreateOrFetchHandle(asset.Params{TypeID: testTypeA, Path: "data/a.bin"})
	group.AddToLoadQueue(handle)
	m.runLoadGroup(groupHandle)
	require.Equal(t, "R:v1", string(m.DB.GetObjData(handle)))

	writeSourceFile(t, srcDir, "a.bin", "v2")
	m.reloadHandle(handle)

	assert.Equal(t, "R:v1", string(m.DB.GetObjData(handle)), "a baker that rejects the reload must leave the previously committed data in place")
}

func TestWatchSourceChangesTriggersReloadOnFileWrite(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "a.bin", "v1")
	m := newWatchingTestManager(t, srcDir)
	b := &reloadBaker{accept: true}
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeA, Name: "typea", Baker: b}))
	m.WatchSourceChanges()

	groupHandle := m.Groups.CreateGroup()
	group, _ := m.Groups.Get(groupHandle)
	handle, _ := m.DB.CreateOrFetchHandle(asset.Params{TypeID: testTypeA, Path: "data/a.bin"})
	group.AddToLoadQueue(handle)
	m.runLoadGroup(groupHandle)
	require.Equal(t, "R:v1", string(m.DB.GetObjData(handle)))

	// Give the local watcher's initial scan time to settle before mutating
	// the file, so the write below is the only change it observes.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.bin"), []byte("v2"), 0o644))

	require.Eventually(t, func() bool {
		return string(m.DB.GetObjData(handle)) == "R:v2"
	}, 3*time.Second, 25*time.Millisecond, "file-change watcher must re-dispatch a reload of the affected handle")
}
