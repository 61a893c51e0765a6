package vfs

import (
	"encoding/binary"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// bundleEntriesBucket holds path -> {offset,size} pairs for a packed asset
// bundle, the same flat-bucket-of-fixed-width-values shape the teacher uses
// for its cache metadata (backend/cache/storage_persistent.go's RootBucket),
// simplified to a single bucket since bundle contents are a flat file list
// rather than a directory tree that needs renaming/moving.
const bundleEntriesBucket = "entries"

// bundleIndex is a bbolt-backed path -> byte-range index over a single
// packed blob file, backing MountType MountBundle (spec §4.1
// MountPackageBundle: "a read-only mount over a platform-specific packed
// asset archive").
type bundleIndex struct {
	db       *bolt.DB
	blobPath string
}

func openBundleIndex(indexPath, blobPath string) (*bundleIndex, error) {
	db, err := bolt.Open(indexPath, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bundle index %q", indexPath)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bundleEntriesBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initializing bundle index bucket")
	}
	return &bundleIndex{db: db, blobPath: blobPath}, nil
}

func (b *bundleIndex) close() error {
	return b.db.Close()
}

func (b *bundleIndex) lookup(relPath string) (offset, size int64, ok bool) {
	key := []byte(cleanBundlePath(relPath))
	_ = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bundleEntriesBucket)).Get(key)
		if len(v) != 16 {
			return nil
		}
		offset = int64(binary.LittleEndian.Uint64(v[0:8]))
		size = int64(binary.LittleEndian.Uint64(v[8:16]))
		ok = true
		return nil
	})
	return offset, size, ok
}

func (b *bundleIndex) put(relPath string, offset, size int64) error {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(offset))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(size))
	key := []byte(cleanBundlePath(relPath))
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bundleEntriesBucket)).Put(key, buf)
	})
}

// readEntry reads the byte range recorded for relPath out of the blob file.
// ok is false when relPath has no entry.
func (b *bundleIndex) readEntry(relPath string) (data []byte, ok bool) {
	offset, size, found := b.lookup(relPath)
	if !found {
		return nil, false
	}
	f, err := os.Open(b.blobPath)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, size), buf); err != nil {
		return nil, false
	}
	return buf, true
}

func cleanBundlePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean(strings.TrimPrefix(p, "/"))
}

// PackBundle walks srcDir and writes every regular file it finds into a
// single concatenated blob at blobPath, recording each file's bundle-relative
// path and byte range in a bbolt index at indexPath. This is the offline
// build-time counterpart to MountBundle: a platform build step runs this
// once to produce the archive a running game then mounts read-only.
func PackBundle(srcDir, indexPath, blobPath string) error {
	var relPaths []string
	err := filepath.Walk(srcDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, rel)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %q", srcDir)
	}
	sort.Strings(relPaths)

	blob, err := os.Create(blobPath)
	if err != nil {
		return errors.Wrapf(err, "creating blob %q", blobPath)
	}
	defer blob.Close()

	idx, err := openBundleIndex(indexPath, blobPath)
	if err != nil {
		return err
	}
	defer idx.close()

	var offset int64
	for _, rel := range relPaths {
		data, err := os.ReadFile(filepath.Join(srcDir, rel))
		if err != nil {
			return errors.Wrapf(err, "reading %q", rel)
		}
		if _, err := blob.Write(data); err != nil {
			return errors.Wrapf(err, "writing %q into blob", rel)
		}
		if err := idx.put(rel, offset, int64(len(data))); err != nil {
			return errors.Wrapf(err, "indexing %q", rel)
		}
		offset += int64(len(data))
	}
	return nil
}
