package cachestore

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	entryMagic   = 0x48434341 // 'ACCH' little-endian, spec §4.5/§6
	entryVersion = 1
)

// ErrCacheCorrupt is returned by ReadEntry when the magic/version doesn't
// match, or the trailing checksum doesn't verify (spec §7 CacheCorrupt; the
// checksum itself is SPEC_FULL.md's Open Question decision #1, absent from
// the original on-disk layout).
var ErrCacheCorrupt = errors.New("cachestore: corrupt cache entry")

// WriteEntry serializes data as a cache entry body (spec §4.5/§6):
//
//	u32 fileId = 'ACCH'
//	u32 version = 1
//	u32 dataSize
//	u8[dataSize] data
//	u32 crc32(data)   (appended, Open Question decision #1)
func WriteEntry(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "cachestore: mkdir for %q", path)
	}
	buf := make([]byte, 12+len(data)+4)
	binary.LittleEndian.PutUint32(buf[0:4], entryMagic)
	binary.LittleEndian.PutUint32(buf[4:8], entryVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(data)))
	copy(buf[12:], data)
	binary.LittleEndian.PutUint32(buf[12+len(data):], crc32.ChecksumIEEE(data))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return errors.Wrapf(err, "cachestore: write %q", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "cachestore: rename %q -> %q", tmp, path)
	}
	return nil
}

// ReadEntry parses a cache entry body previously written by WriteEntry. A
// magic/version mismatch or checksum failure returns ErrCacheCorrupt, which
// callers treat as a cache miss (spec §7 CacheCorrupt).
func ReadEntry(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) < 16 {
		return nil, ErrCacheCorrupt
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	version := binary.LittleEndian.Uint32(buf[4:8])
	dataSize := binary.LittleEndian.Uint32(buf[8:12])
	if magic != entryMagic || version != entryVersion {
		return nil, ErrCacheCorrupt
	}
	if uint32(len(buf)) != 12+dataSize+4 {
		return nil, ErrCacheCorrupt
	}
	data := buf[12 : 12+dataSize]
	wantCRC := binary.LittleEndian.Uint32(buf[12+dataSize:])
	if crc32.ChecksumIEEE(data) != wantCRC {
		return nil, ErrCacheCorrupt
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether a cache file is present at path, without validating it.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
