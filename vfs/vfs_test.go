package vfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestMountAndResolveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "hello")

	v := New(nil)
	require.NoError(t, v.Mount(dir, "data", false))

	full := v.ResolveFilepath("/data/a.txt")
	assert.Equal(t, filepath.Join(dir, "a.txt"), full)

	// StripMountPath drops the alias, leaving the mount-relative path.
	stripped := v.StripMountPath("/data/a.txt")
	assert.Equal(t, "a.txt", stripped)
}

func TestDuplicateAliasRejected(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.Mount(t.TempDir(), "data", false))
	assert.Error(t, v.Mount(t.TempDir(), "data", false))
}

func TestReadWriteLocal(t *testing.T) {
	dir := t.TempDir()
	v := New(nil)
	require.NoError(t, v.Mount(dir, "data", false))

	n := v.Write("/data/out.bin", NewBlob([]byte("payload")), FlagNone)
	assert.Equal(t, len("payload"), n)

	blob := v.Read("/data/out.bin", FlagNone)
	require.True(t, blob.IsValid())
	assert.Equal(t, "payload", string(blob.Data))
}

func TestReadTextFileAppendsNul(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "t.txt", "hi")
	v := New(nil)
	require.NoError(t, v.Mount(dir, "data", false))

	blob := v.Read("/data/t.txt", FlagTextFile)
	require.True(t, blob.IsValid())
	assert.Equal(t, byte(0), blob.Data[len(blob.Data)-1])
}

func TestWriteCreateDirs(t *testing.T) {
	dir := t.TempDir()
	v := New(nil)
	require.NoError(t, v.Mount(dir, "data", false))

	n := v.Write("/data/nested/deep/out.bin", NewBlob([]byte("x")), FlagCreateDirs)
	assert.Equal(t, 1, n)
	_, err := os.Stat(filepath.Join(dir, "nested", "deep", "out.bin"))
	assert.NoError(t, err)
}

func TestReadMissingFileReturnsInvalidBlob(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.Mount(t.TempDir(), "data", false))
	blob := v.Read("/data/nope.bin", FlagNone)
	assert.False(t, blob.IsValid())
}

func TestReadBlockingFailsOnRemoteMount(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.MountRemote("remote", false))
	blob := v.Read("/remote/a.bin", FlagNone)
	assert.False(t, blob.IsValid())
}

func TestReadAsync(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "async")
	v := New(nil)
	require.NoError(t, v.Mount(dir, "data", false))
	defer v.Close()

	done := make(chan Blob, 1)
	v.ReadAsync("/data/a.txt", FlagNone, func(path string, blob Blob, user interface{}) {
		done <- blob
	}, nil)

	select {
	case blob := <-done:
		require.True(t, blob.IsValid())
		assert.Equal(t, "async", string(blob.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("async read did not complete")
	}
}

func TestWriteAsync(t *testing.T) {
	dir := t.TempDir()
	v := New(nil)
	require.NoError(t, v.Mount(dir, "data", false))
	defer v.Close()

	done := make(chan int, 1)
	v.WriteAsync("/data/out.bin", NewBlob([]byte("xyz")), FlagNone, func(path string, n int, original Blob, user interface{}) {
		done <- n
	}, nil)

	select {
	case n := <-done:
		assert.Equal(t, 3, n)
	case <-time.After(2 * time.Second):
		t.Fatal("async write did not complete")
	}
}

func TestGetMountType(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.Mount(t.TempDir(), "data", false))
	require.NoError(t, v.MountRemote("remote", false))
	require.NoError(t, v.MountBundle("assets", "", ""))

	assert.Equal(t, MountLocal, v.GetMountType("/data/x"))
	assert.Equal(t, MountRemote, v.GetMountType("/remote/x"))
	assert.Equal(t, MountBundle, v.GetMountType("/assets/x"))
	assert.Equal(t, MountNone, v.GetMountType("/unknown/x"))
}

func TestMountBundleReadsPackedAssets(t *testing.T) {
	srcDir := t.TempDir()
	writeTestFile(t, srcDir, "textures/wall.img", "wall-bytes")
	writeTestFile(t, srcDir, "shaders/basic.shd", "shader-bytes")

	bundleDir := t.TempDir()
	indexPath := filepath.Join(bundleDir, "bundle.idx")
	blobPath := filepath.Join(bundleDir, "bundle.blob")
	require.NoError(t, PackBundle(srcDir, indexPath, blobPath))

	v := New(nil)
	require.NoError(t, v.MountBundle("assets", indexPath, blobPath))
	defer v.Close()

	blob := v.Read("/assets/textures/wall.img", FlagNone)
	require.True(t, blob.IsValid())
	assert.Equal(t, "wall-bytes", string(blob.Data))

	blob = v.Read("/assets/shaders/basic.shd", FlagNone)
	require.True(t, blob.IsValid())
	assert.Equal(t, "shader-bytes", string(blob.Data))

	missing := v.Read("/assets/nope.bin", FlagNone)
	assert.False(t, missing.IsValid())
}

func TestFileChangeCallback(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "watched.txt", "v1")

	v := New(nil)
	changed := make(chan string, 4)
	v.RegisterFileChangeCallback(func(path string) { changed <- path })
	require.NoError(t, v.Mount(dir, "data", true))
	defer v.Close()

	time.Sleep(300 * time.Millisecond) // let the watcher seed its baseline
	writeTestFile(t, dir, "watched.txt", "v2-longer-content")

	select {
	case path := <-changed:
		assert.Equal(t, "data/watched.txt", path)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}
}
