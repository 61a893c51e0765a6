package cachestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/vfs/vfscommon"
)

func TestEntryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "img", "a.png_deadbeef.Image")
	data := []byte("baked asset bytes")
	require.NoError(t, WriteEntry(path, data))

	got, err := ReadEntry(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEntryDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png_1.Image")
	require.NoError(t, WriteEntry(path, []byte("hello")))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF // flip a bit in the trailing checksum
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err = ReadEntry(path)
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestEntryDetectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png_1.Image")
	require.NoError(t, os.WriteFile(path, []byte("not a cache entry at all"), 0o644))
	_, err := ReadEntry(path)
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestEntryPathDerivation(t *testing.T) {
	got := EntryPath("/cache", "data/img/a.png", 0xdeadbeef, "Image")
	assert.Equal(t, "/cache/data/img/a.png_deadbeef.Image", got)
}

func TestAssetHashZeroWhenUnstattable(t *testing.T) {
	h := ComputeAssetHash("x", 1, 0, time.Time{}, 0, time.Time{})
	assert.Zero(t, h)
}

func TestAssetHashDeterministic(t *testing.T) {
	mt := time.Unix(1000, 0)
	a := ComputeAssetHash("data/img/a.png", 42, 1024, mt, 0, time.Time{})
	b := ComputeAssetHash("data/img/a.png", 42, 1024, mt, 0, time.Time{})
	assert.Equal(t, a, b)
	c := ComputeAssetHash("data/img/a.png", 42, 1025, mt, 0, time.Time{})
	assert.NotEqual(t, a, c)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.HashLookupFlushMinDirty = 0
	cfg.HashLookupFlushMinInterval = 0
	s, err := Open(cfg)
	require.NoError(t, err)
	return s
}

func TestStoreCacheOnlyReflectsConfiguredMode(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.CacheMode = vfscommon.CacheModeReadOnly
	s, err := Open(cfg)
	require.NoError(t, err)
	assert.True(t, s.CacheOnly())

	cfg2 := config.Default()
	cfg2.CacheDir = t.TempDir()
	s2, err := Open(cfg2)
	require.NoError(t, err)
	assert.False(t, s2.CacheOnly(), "default config mode (full) must not be cache-only")
}

func TestStoreLookupRoundTrip(t *testing.T) {
	s := newTestStore(t)
	key := asset.LookupKey{TypeID: 0x474c5446, ParamsHash: 123}

	_, ok := s.Lookup(key)
	assert.False(t, ok)

	s.SetLookup(key, 0xabc)
	got, ok := s.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, uint32(0xabc), got)
}

func TestStoreFlushNoOpWhenClean(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Flush())
	_, err := os.Stat(HashLookupPath(s.dir))
	assert.True(t, os.IsNotExist(err), "flush with nothing dirty must not write a file")
}

func TestStoreFlushAndReload(t *testing.T) {
	s := newTestStore(t)
	key := asset.LookupKey{TypeID: 1, ParamsHash: 2}
	s.SetLookup(key, 3)
	require.NoError(t, s.Flush())

	cfg := config.Default()
	cfg.CacheDir = s.dir
	reloaded, err := Open(cfg)
	require.NoError(t, err)
	got, ok := reloaded.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, uint32(3), got)
}

func TestStoreMaybeFlushRespectsDirtyWindow(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.HashLookupFlushMinDirty = time.Hour
	cfg.HashLookupFlushMinInterval = 0
	s, err := Open(cfg)
	require.NoError(t, err)

	s.SetLookup(asset.LookupKey{TypeID: 1, ParamsHash: 1}, 1)
	assert.False(t, s.MaybeFlush(time.Now()), "flush should not happen before minDirty elapses")
}
