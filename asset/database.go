// Package asset implements the Asset Database (spec §4.4): a generational
// handle pool keyed by a parameter hash, holding reference counts, load
// state, committed data, and the dependency/GPU-object bookkeeping needed to
// cascade an unload.
package asset

import (
	"sync"

	"github.com/kestrelengine/assetpipe/asset/alloc"
	"github.com/kestrelengine/assetpipe/corelog"
)

// State is the runtime lifecycle state of an asset header (spec §3).
type State int

const (
	StateZombie State = iota
	StateLoading
	StateLoaded
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StateLoaded:
		return "Loaded"
	case StateLoadFailed:
		return "LoadFailed"
	default:
		return "Zombie"
	}
}

// GPUHandleRef records one GPU object created for this asset, so unload can
// destroy it (spec §4.6).
type GPUHandleRef struct {
	IsTexture bool
	Native    uint64 // backend-defined GPU handle, opaque to the core
}

// Header is the runtime-only Asset Header (spec §3).
type Header struct {
	mu         sync.Mutex
	State      State
	ParamsHash uint32
	TypeID     uint32
	Params     Params
	RefCount   int32
	Data       []byte // committed AssetDataInternal payload, or nil
	DataSize   int64
	Deps       []Handle // resolved dependency handles, for cascading unload
	GPUHandles []GPUHandleRef
}

// snapshot returns a read-consistent copy of the fields callers most often need.
func (h *Header) snapshot() (State, int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.State, h.RefCount
}

// Database is the generational handle pool backing every asset in the
// process (spec §4.4). One reader/writer mutex protects the lookup index and
// the header pool's occupancy bookkeeping, matching the teacher's pattern of
// a single RWMutex guarding a header/data store's small hot-path structures
// (spec §5: "Asset database -> single reader-writer mutex").
type Database struct {
	mu      sync.RWMutex
	headers *alloc.HeaderPool[*Header]
	data    *alloc.DataAllocator
	lookup  map[LookupKey]Handle
}

// NewDatabase creates an empty asset database.
func NewDatabase() *Database {
	return &Database{
		headers: alloc.NewHeaderPool[*Header](),
		data:    alloc.NewDataAllocator(),
		lookup:  make(map[LookupKey]Handle),
	}
}

// DataAllocator exposes the database's data allocator so the load pipeline
// can commit scratch-arena bakes into it under the scheduler's single-writer
// discipline (spec §4.4, §4.7 step 7).
func (db *Database) DataAllocator() *alloc.DataAllocator { return db.data }

// CreateOrFetchHandle implements spec §4.4's de-duplication rule: a second
// request with an equal params-hash increments the existing handle's
// refcount and returns it; a miss allocates a new header in state Loading.
// isNew reports whether a new header was allocated (callers use this to
// decide whether to enqueue the handle for the load pipeline to service).
func (db *Database) CreateOrFetchHandle(p Params) (h Handle, isNew bool) {
	key := LookupKey{TypeID: p.TypeID, ParamsHash: p.Hash()}

	db.mu.Lock()
	if existing, ok := db.lookup[key]; ok {
		db.mu.Unlock()
		if hdr, alive := db.header(existing); alive {
			hdr.mu.Lock()
			hdr.RefCount++
			hdr.mu.Unlock()
			return existing, false
		}
		// Stale lookup entry pointing at a torn-down header: fall through
		// and allocate a fresh one, replacing the mapping below.
		db.mu.Lock()
	}

	hdr := &Header{
		State:      StateLoading,
		ParamsHash: key.ParamsHash,
		TypeID:     p.TypeID,
		Params:     p,
		RefCount:   1,
	}
	idx, gen := db.headers.Alloc(hdr)
	handle := NewHandle(idx, gen)
	db.lookup[key] = handle
	db.mu.Unlock()

	corelog.Debugf("asset.db", "allocated handle %v for %s (type %#x)", handle, p.Path, p.TypeID)
	return handle, true
}

// header resolves a handle to its live *Header, or (nil, false).
func (db *Database) header(h Handle) (*Header, bool) {
	hdr, ok := db.headers.Get(h.Index(), h.Generation())
	if !ok || hdr == nil {
		return nil, false
	}
	return hdr, true
}

// IsAlive reports whether h currently refers to a live (non-Zombie) entry
// (spec §3 invariant 1). Thread-safe; callable from any goroutine.
func (db *Database) IsAlive(h Handle) bool {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return false
	}
	state, _ := hdr.snapshot()
	return state != StateZombie
}

// AddRef increments h's refcount directly, used by callers bypassing the
// group machinery (spec §3 "Supplemented features": AssetAddRef in the
// original). Returns false if h is not alive.
func (db *Database) AddRef(h Handle) bool {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return false
	}
	hdr.mu.Lock()
	hdr.RefCount++
	hdr.mu.Unlock()
	return true
}

// Release drops h's refcount by one; when it reaches zero the caller (the
// unload pipeline or CollectGarbage) is responsible for tearing the entry
// down via Teardown. Returns the refcount after the decrement, or -1 if h is
// not alive.
func (db *Database) Release(h Handle) int32 {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return -1
	}
	hdr.mu.Lock()
	hdr.RefCount--
	rc := hdr.RefCount
	hdr.mu.Unlock()
	if rc < 0 {
		corelog.Errorf("asset.db", "refcount underflow on handle %v", h)
	}
	return rc
}

// GetObjData returns the committed payload bytes for h, or nil if h is not
// alive or has no committed data yet (spec §6 Asset::GetObjData).
func (db *Database) GetObjData(h Handle) []byte {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return nil
	}
	hdr.mu.Lock()
	defer hdr.mu.Unlock()
	return hdr.Data
}

// GetParams returns the Params h was loaded with (spec §6 Asset::GetParams).
func (db *Database) GetParams(h Handle) (Params, bool) {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return Params{}, false
	}
	hdr.mu.Lock()
	defer hdr.mu.Unlock()
	return hdr.Params, true
}

// State returns h's current lifecycle state.
func (db *Database) State(h Handle) (State, bool) {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return StateZombie, false
	}
	state, _ := hdr.snapshot()
	return state, true
}

// SetLoaded publishes committed data and flips the header to Loaded (spec
// §4.7 step 7, §5 "release/acquire on the group's state word" — Go's mutex
// provides the same happens-before guarantee here).
func (db *Database) SetLoaded(h Handle, data []byte, deps []Handle, gpu []GPUHandleRef) {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return
	}
	hdr.mu.Lock()
	hdr.Data = data
	hdr.DataSize = int64(len(data))
	hdr.Deps = deps
	hdr.GPUHandles = gpu
	hdr.State = StateLoaded
	hdr.mu.Unlock()
}

// SetLoadFailed flips the header to LoadFailed, publishing placeholder as
// its committed data (spec §7 SourceMissing: "asset state ⇒ LoadFailed,
// header's data pointer set to the type's 'failed' placeholder"). placeholder
// may be nil when no type descriptor was resolved (e.g. an unregistered
// type), leaving GetObjData returning nil as before.
func (db *Database) SetLoadFailed(h Handle, placeholder []byte) {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return
	}
	hdr.mu.Lock()
	hdr.State = StateLoadFailed
	hdr.Data = placeholder
	hdr.DataSize = int64(len(placeholder))
	hdr.mu.Unlock()
}

// SetLoadingPlaceholder publishes a type's "async" placeholder as h's
// committed data while the load is still in flight (spec §3 Asset Type
// Descriptor: "placeholder 'async' object"), so a concurrent GetObjData call
// sees a usable stand-in instead of nil. A no-op once h has left Loading.
func (db *Database) SetLoadingPlaceholder(h Handle, placeholder []byte) {
	if len(placeholder) == 0 {
		return
	}
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return
	}
	hdr.mu.Lock()
	if hdr.State == StateLoading {
		hdr.Data = placeholder
		hdr.DataSize = int64(len(placeholder))
	}
	hdr.mu.Unlock()
}

// HandlesByPath returns every live handle whose Params.Path equals path,
// across all registered types and platforms (spec §7: a file-change event
// re-dispatches every in-flight/loaded asset sourced from that path).
func (db *Database) HandlesByPath(path string) []Handle {
	db.mu.RLock()
	candidates := make([]Handle, 0, len(db.lookup))
	for _, h := range db.lookup {
		candidates = append(candidates, h)
	}
	db.mu.RUnlock()

	out := make([]Handle, 0, len(candidates))
	for _, h := range candidates {
		if p, ok := db.GetParams(h); ok && p.Path == path {
			out = append(out, h)
		}
	}
	return out
}

// Dependencies returns the resolved dependency handles recorded on h (used
// by the unload pipeline to cascade).
func (db *Database) Dependencies(h Handle) []Handle {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return nil
	}
	hdr.mu.Lock()
	defer hdr.mu.Unlock()
	return append([]Handle(nil), hdr.Deps...)
}

// GPUHandles returns the GPU object handles recorded on h.
func (db *Database) GPUHandles(h Handle) []GPUHandleRef {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return nil
	}
	hdr.mu.Lock()
	defer hdr.mu.Unlock()
	return append([]GPUHandleRef(nil), hdr.GPUHandles...)
}

// Teardown frees a zero-refcount header: releases its committed data back to
// the data allocator, removes it from the lookup index, and frees its pool
// slot (spec §3 invariant 3, §4.6). Callers must have already destroyed any
// GPU objects listed on the header before calling this.
func (db *Database) Teardown(h Handle) {
	db.mu.Lock()
	hdr, ok := db.header(h)
	if !ok {
		db.mu.Unlock()
		return
	}
	key := LookupKey{TypeID: hdr.TypeID, ParamsHash: hdr.ParamsHash}
	if db.lookup[key] == h {
		delete(db.lookup, key)
	}
	db.headers.Free(h.Index())
	db.mu.Unlock()

	hdr.mu.Lock()
	data := hdr.Data
	hdr.Data = nil
	hdr.State = StateZombie
	hdr.mu.Unlock()
	if data != nil {
		db.data.Release(data)
	}
}

// LiveCount returns the number of currently-allocated handles, used by the
// refcount-discipline property test (spec §8.5).
func (db *Database) LiveCount() int {
	return db.headers.InUse()
}

// RefCount returns h's current refcount, or -1 if not alive.
func (db *Database) RefCount(h Handle) int32 {
	db.mu.RLock()
	hdr, ok := db.header(h)
	db.mu.RUnlock()
	if !ok {
		return -1
	}
	hdr.mu.Lock()
	defer hdr.mu.Unlock()
	return hdr.RefCount
}
