package alloc

import "fmt"

const defaultArenaChunk = 64 * 1024

// Arena is a per-worker scratch bump allocator (spec §3, §4.4, §9): bakers
// write their AssetData payload into it, it is reset once per group after
// all successful outputs have been promoted into the data allocator.
//
// The source engine backs this with a reserved virtual-memory range that is
// page-committed on demand up to a 1 GiB ceiling; in Go we approximate that
// with a slice that grows in chunks up to the same cap, relying on the
// runtime allocator rather than manual mmap/VirtualAlloc — the bump-pointer
// *discipline* (monotonic Alloc, single Reset) is what the rest of the
// pipeline depends on, not the backing storage mechanism.
type Arena struct {
	buf    []byte
	offset int
	cap    int64
}

// NewArena creates a scratch arena that will never grow past capBytes.
func NewArena(capBytes int64) *Arena {
	initial := int64(defaultArenaChunk)
	if initial > capBytes {
		initial = capBytes
	}
	return &Arena{buf: make([]byte, initial), cap: capBytes}
}

// Alloc bumps the arena pointer and returns a size-byte slice positioned at
// the previous offset. Returns nil if the allocation would exceed cap.
func (a *Arena) Alloc(size int) []byte {
	if size < 0 {
		return nil
	}
	needed := a.offset + size
	if int64(needed) > a.cap {
		return nil
	}
	if needed > len(a.buf) {
		newCap := len(a.buf) * 2
		if newCap < needed {
			newCap = needed
		}
		if int64(newCap) > a.cap {
			newCap = int(a.cap)
		}
		grown := make([]byte, newCap)
		copy(grown, a.buf[:a.offset])
		a.buf = grown
	}
	out := a.buf[a.offset:needed]
	a.offset = needed
	return out
}

// Append writes src into a fresh arena allocation and returns it.
func (a *Arena) Append(src []byte) []byte {
	dst := a.Alloc(len(src))
	if dst == nil {
		return nil
	}
	copy(dst, src)
	return dst
}

// Reset rewinds the bump pointer to zero without releasing the backing
// buffer, so the next group's bakes reuse the same committed pages.
func (a *Arena) Reset() { a.offset = 0 }

// Used returns bytes currently allocated from the arena.
func (a *Arena) Used() int { return a.offset }

// String renders the arena's utilization for logging/debug dumps.
func (a *Arena) String() string {
	return fmt.Sprintf("arena(used=%d/%d)", a.offset, a.cap)
}
