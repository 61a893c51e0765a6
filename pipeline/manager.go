package pipeline

import (
	"sync"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/remote"
	"github.com/kestrelengine/assetpipe/scheduler"
	"github.com/kestrelengine/assetpipe/typereg"
	"github.com/kestrelengine/assetpipe/vfs"
)

// Manager owns the full data-flow of spec §4.7: it holds the Asset
// Database, Type Registry, VFS, Cache Store and GPU backend, and implements
// scheduler.Dispatcher so a Scheduler can drive its Load/Unload/Server
// pipelines without knowing anything about their internals.
type Manager struct {
	DB       *asset.Database
	Groups   *asset.GroupPool
	Registry *typereg.Registry
	VFS      *vfs.VFS
	Store    *cachestore.Store
	Cfg      *config.Config
	GPU      GPUBackend

	// RemoteBus, when set, is used both as a client (dispatching
	// Baked-from-remote bakes to a bake server, spec §4.7 step 2/3) and
	// wired via RegisterBakeServerHandler when this process *is* the bake
	// server (spec §4.7 "Bake Server Pipeline").
	RemoteBus *remote.Bus

	pendingMu   sync.Mutex
	pendingBake []bakeRequest
}

// New creates a Manager over the given collaborators. gpu may be
// pipeline.NullGPUBackend{} for headless/server operation.
func New(db *asset.Database, groups *asset.GroupPool, registry *typereg.Registry, v *vfs.VFS, store *cachestore.Store, cfg *config.Config, gpu GPUBackend) *Manager {
	return &Manager{DB: db, Groups: groups, Registry: registry, VFS: v, Store: store, Cfg: cfg, GPU: gpu}
}

// DispatchLoad implements scheduler.Dispatcher (spec §4.7 Load Pipeline).
func (m *Manager) DispatchLoad(group asset.Handle) scheduler.Job {
	return scheduler.RunAsync(func() { m.runLoadGroup(group) })
}

// DispatchUnload implements scheduler.Dispatcher (spec §4.7 Unload Pipeline).
func (m *Manager) DispatchUnload(group asset.Handle) scheduler.Job {
	return scheduler.RunAsync(func() { m.runUnloadGroup(group) })
}

// DispatchServer implements scheduler.Dispatcher (spec §4.7 Bake Server Pipeline).
func (m *Manager) DispatchServer() scheduler.Job {
	return scheduler.RunAsync(func() { m.runServerBatch() })
}

// CollectGarbage sweeps the database for zero-refcount entries not reached
// via a group unload (SPEC_FULL.md supplemented feature, grounded in the
// original's explicit garbage pass for callers using AssetAddRef/AssetUnload
// directly). The asset.Database doesn't expose an enumerate-all operation by
// design (spec §5 keeps the header pool's occupancy bookkeeping private), so
// this takes the candidate handle set explicitly from the caller, which is
// expected to track them (e.g. the barrier-based legacy load API).
func (m *Manager) CollectGarbage(candidates []asset.Handle) {
	for _, h := range candidates {
		if m.DB.RefCount(h) == 0 {
			m.teardownHandle(h)
		}
	}
}

// Stats reports live-asset budget counters (SPEC_FULL.md supplemented
// "AssetBudgetStats").
type Stats struct {
	LiveHandles   int
	LiveDataBytes int64
	LiveDataCount int64
}

// Stats reports the current budget snapshot.
func (m *Manager) Stats() Stats {
	bytes, count := m.DB.DataAllocator().Stats()
	return Stats{
		LiveHandles:   m.DB.LiveCount(),
		LiveDataBytes: bytes,
		LiveDataCount: count,
	}
}
