package asset

import "strconv"

// Handle is the opaque external reference to a loaded (or loading) asset,
// group, or barrier (spec §3). The low 18 bits are a sparse index into the
// owning pool; the high 14 bits are a generation counter that is bumped
// every time the slot is recycled, so a stale handle from a freed slot can
// never alias a live one (use-after-free defense).
type Handle uint32

const (
	handleIndexBits = 18
	handleIndexMask = 1<<handleIndexBits - 1
	handleGenShift  = handleIndexBits
	handleGenMask   = 1<<14 - 1
)

// InvalidHandle is the zero value; no live asset ever has index 0 generation 0
// because generation 0 is reserved as "never issued" (spec §3: "Invalid handle is zero").
const InvalidHandle Handle = 0

// NewHandle packs an index and generation into a Handle. Both are masked to
// their bit width; callers own keeping the generation in range (wraps at 2^14).
func NewHandle(index int, generation uint16) Handle {
	return Handle(uint32(index&handleIndexMask) | uint32(generation&handleGenMask)<<handleGenShift)
}

// Index returns the sparse-pool index encoded in h.
func (h Handle) Index() int { return int(uint32(h) & handleIndexMask) }

// Generation returns the generation counter encoded in h.
func (h Handle) Generation() uint16 { return uint16(uint32(h) >> handleGenShift & handleGenMask) }

// IsValid reports whether h is not the zero handle. It does NOT imply the
// handle is still alive in any particular pool — only that it was ever
// capable of referring to a live entry. Liveness is a property of the pool,
// checked via Database.IsAlive.
func (h Handle) IsValid() bool { return h != InvalidHandle }

// String renders the handle as "idx:gen" for logging.
func (h Handle) String() string {
	if !h.IsValid() {
		return "<invalid>"
	}
	return strconv.Itoa(h.Index()) + ":" + strconv.Itoa(int(h.Generation()))
}
