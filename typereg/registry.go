// Package typereg implements the Type Registry (spec §4.3): the
// insertion-ordered table mapping a 32-bit asset type-id to its baker
// implementation and placeholder objects.
package typereg

import (
	"fmt"
	"sync"

	"github.com/kestrelengine/assetpipe/baker"
)

// Descriptor is an Asset Type Descriptor (spec §3).
type Descriptor struct {
	TypeID            uint32
	Name              string
	Baker             baker.Baker
	ExtraParamsSize   int
	AsyncPlaceholder  []byte
	FailedPlaceholder []byte
}

type slot struct {
	desc       Descriptor
	tombstoned bool
}

// Registry is the type-id -> descriptor table. Safe for concurrent use; the
// asset database and load pipeline read it from worker goroutines while
// Asset::RegisterType/UnregisterType are only ever called from the main
// thread (mirrors spec §5's thread-ownership rules, enforced here only by
// documentation, not a lock split, since writes are rare and short).
type Registry struct {
	mu      sync.RWMutex
	byID    map[uint32]*slot
	order   []uint32 // insertion order, for deterministic iteration/listing
	byName  map[string]uint32
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[uint32]*slot),
		byName: make(map[string]uint32),
	}
}

// Register adds a new type descriptor. Duplicate registration of the same id
// or the same name is an error (spec §4.3).
func (r *Registry) Register(desc Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[desc.TypeID]; ok {
		return fmt.Errorf("typereg: type id %#x already registered", desc.TypeID)
	}
	if _, ok := r.byName[desc.Name]; ok {
		return fmt.Errorf("typereg: type name %q already registered", desc.Name)
	}
	r.byID[desc.TypeID] = &slot{desc: desc}
	r.byName[desc.Name] = desc.TypeID
	r.order = append(r.order, desc.TypeID)
	return nil
}

// Unregister tombstones a type id: in-flight loads against it finish
// draining but skip resource creation/release, and the slot is never reused
// (spec §4.3).
func (r *Registry) Unregister(typeID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[typeID]
	if !ok {
		return fmt.Errorf("typereg: type id %#x not registered", typeID)
	}
	s.tombstoned = true
	return nil
}

// Get returns the descriptor for typeID and whether it is usable (registered
// and not tombstoned).
func (r *Registry) Get(typeID uint32) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[typeID]
	if !ok || s.tombstoned {
		return Descriptor{}, false
	}
	return s.desc, true
}

// IsTombstoned reports whether typeID was registered and then unregistered.
// The load/unload pipelines consult this to decide whether to skip GPU
// resource creation/release for an in-flight asset of that type.
func (r *Registry) IsTombstoned(typeID uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[typeID]
	return ok && s.tombstoned
}

// GetIncludingTombstoned returns typeID's descriptor whether or not its slot
// has been tombstoned; ok reports only whether typeID was ever registered.
// Unlike Get, this lets an in-flight load against a freshly-unregistered
// type keep its baker and placeholders long enough to drain cleanly (spec
// §4.3: "in-flight loads completing against it skip resource creation/
// release but still drain cleanly").
func (r *Registry) GetIncludingTombstoned(typeID uint32) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[typeID]
	if !ok {
		return Descriptor{}, false
	}
	return s.desc, true
}

// All returns every registered descriptor (including tombstoned ones) in
// registration order, for diagnostics (e.g. a "list asset types" CLI command).
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].desc)
	}
	return out
}
