package cachestore

import (
	"fmt"
	"path"
)

// EntryPath derives the on-disk cache path for one asset, per spec §4.5:
// "/cache/{alias-stripped source dir}/{source filename}_{asset-hash hex}.{type-name}".
// sourcePath is expected alias-relative already (vfs.StripMountPath's
// output), so "alias-stripped" just means using it as given.
func EntryPath(cacheDir, sourcePath string, assetHash uint32, typeName string) string {
	dir := path.Dir(sourcePath)
	if dir == "." {
		dir = ""
	}
	base := path.Base(sourcePath)
	fileName := fmt.Sprintf("%s_%08x.%s", base, assetHash, typeName)
	return path.Join(cacheDir, dir, fileName)
}

// HashLookupPath is the fixed path of the persisted hash-lookup table (spec §4.5, §6).
func HashLookupPath(cacheDir string) string {
	return path.Join(cacheDir, "_HashLookup.txt")
}
