// Package cachestore implements the Cache Store (spec §4.5): a
// content-addressed on-disk layout for baked asset blobs, plus the
// params-hash -> asset-hash lookup table persisted across runs.
package cachestore

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ComputeAssetHash implements spec §4.5's cache key: "hash(sourcePath,
// paramsHash, sourceFileSize, sourceFileLastModified, metaFileSize?,
// metaFileLastModified?)". A zero sourceSize/zero modTime (source file could
// not be stat'd) yields a zero hash, which callers treat as "force source
// path" per the same section.
func ComputeAssetHash(sourcePath string, paramsHash uint32, sourceSize int64, sourceModTime time.Time, metaSize int64, metaModTime time.Time) uint32 {
	if sourceSize == 0 && sourceModTime.IsZero() {
		return 0
	}
	h := xxhash.New()
	_, _ = h.Write([]byte(sourcePath))
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], paramsHash)
	_, _ = h.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], uint64(sourceSize))
	_, _ = h.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(sourceModTime.UnixNano()))
	_, _ = h.Write(scratch[:])
	if metaSize != 0 || !metaModTime.IsZero() {
		binary.LittleEndian.PutUint64(scratch[:], uint64(metaSize))
		_, _ = h.Write(scratch[:])
		binary.LittleEndian.PutUint64(scratch[:], uint64(metaModTime.UnixNano()))
		_, _ = h.Write(scratch[:])
	}
	sum := h.Sum64()
	return uint32(sum) ^ uint32(sum>>32)
}
