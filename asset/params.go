package asset

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Platform selects the target platform a bake should produce output for
// (spec §3).
type Platform uint32

const (
	PlatformAuto Platform = iota
	PlatformPC
	PlatformMobile
)

func (p Platform) String() string {
	switch p {
	case PlatformPC:
		return "pc"
	case PlatformMobile:
		return "mobile"
	default:
		return "auto"
	}
}

// Params is an Asset Parameters record (spec §3): everything needed to
// identify and de-duplicate a single load request.
type Params struct {
	TypeID   uint32
	Path     string
	Platform Platform
	// Extra is the type-specific parameters blob (e.g. encoded compression
	// settings); its layout is opaque to the core and owned by the baker.
	Extra []byte
	// Tags is a free-form caller bitmask, carried over from the original
	// implementation (SPEC_FULL.md "Supplemented features") for later
	// filtering; it does not participate in the params hash.
	Tags uint32
	// SkipGPUObjects, also supplemented from the original, lets a caller
	// (e.g. the bake server, or headless validation) skip GPU object
	// creation in the Load Pipeline's step 6.
	SkipGPUObjects bool
}

// Hash computes the 32-bit content-sensitive params-hash from spec §3: "Two
// parameter records are equivalent iff their params-hash is equal." TypeID is
// folded into the digest per SPEC_FULL.md's Open Question decision #2, which
// extends the original hash-lookup key to type+path+platform+extras to avoid
// the collision the original spec flags.
func (p Params) Hash() uint32 {
	h := xxhash.New()
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], p.TypeID)
	_, _ = h.Write(scratch[:])
	_, _ = h.Write([]byte(p.Path))
	binary.LittleEndian.PutUint32(scratch[:], uint32(p.Platform))
	_, _ = h.Write(scratch[:])
	if len(p.Extra) > 0 {
		_, _ = h.Write(p.Extra)
	}
	sum := h.Sum64()
	return uint32(sum) ^ uint32(sum>>32)
}

// LookupKey is the extended hash-lookup key (type-id + params-hash) used to
// address the hash-lookup table (SPEC_FULL.md Open Question #2).
type LookupKey struct {
	TypeID     uint32
	ParamsHash uint32
}
