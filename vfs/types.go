// Package vfs implements the Virtual Filesystem (spec §4.1): path-to-mount
// resolution, blocking and asynchronous read/write, and change-watch
// notifications over local, remote, and platform-bundle mounts.
package vfs

// Flags control read/write behavior (spec §4.1).
type Flags uint32

const (
	FlagNone Flags = 0
	// FlagAbsolutePath bypasses alias resolution and treats Path as already resolved.
	FlagAbsolutePath Flags = 1 << iota
	// FlagTextFile appends a NUL byte on read, mirroring the C-string convention.
	FlagTextFile
	// FlagAppend opens for append rather than truncate on write.
	FlagAppend
	// FlagCreateDirs mkdir -p's the destination directory on write.
	FlagCreateDirs
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// MountType identifies the kind of backing store a mount point serves from
// (spec §3).
type MountType int

const (
	MountNone MountType = iota
	MountLocal
	MountRemote
	MountBundle
)

func (m MountType) String() string {
	switch m {
	case MountLocal:
		return "local"
	case MountRemote:
		return "remote"
	case MountBundle:
		return "bundle"
	default:
		return "none"
	}
}

// Blob is a loaded (or to-be-written) byte payload. The zero value is
// invalid, mirroring spec §4.1's "fails -> empty blob / zero bytes, no
// exceptions" error convention.
type Blob struct {
	Data  []byte
	valid bool
}

// NewBlob wraps data as a valid blob.
func NewBlob(data []byte) Blob { return Blob{Data: data, valid: true} }

// IsValid reports whether the blob represents a successful read/write result.
func (b Blob) IsValid() bool { return b.valid }

// ReadCallback is invoked once an async read completes (spec §4.1).
type ReadCallback func(path string, blob Blob, user interface{})

// WriteCallback is invoked once an async write completes (spec §4.1).
type WriteCallback func(path string, bytesWritten int, original Blob, user interface{})

// ChangeCallback is invoked for every file-modification event dispatched by a
// mount's watcher (spec §4.1), with a path relative to the mount alias.
type ChangeCallback func(path string)
