package pipeline

import (
	"context"
	"encoding/binary"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/baker"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/corelog"
	"github.com/kestrelengine/assetpipe/remote"
	"github.com/kestrelengine/assetpipe/vfs"
)

// planKind is the step-1 classification of how a task's bytes will be produced.
type planKind int

const (
	planSource planKind = iota
	planBaked
	planBakedRemote
)

// loadTask tracks one handle through every step of the Load Pipeline (spec §4.7).
type loadTask struct {
	handle    asset.Handle
	params    asset.Params
	typeName  string
	meta      loadedMeta
	kind      planKind
	cachePath string
	assetHash uint32

	// skipGPU is set when the asset's type was tombstoned between request
	// and bake: the bake itself still runs (so a handle already committed
	// to draining finishes cleanly), but GPU object creation is skipped
	// (spec §4.3: "skip resource creation/release but still drain cleanly").
	skipGPU bool
	// failedPlaceholder is the type's "failed" placeholder object, recorded
	// as soon as a descriptor is resolved so any later failure can publish
	// it (spec §7 SourceMissing).
	failedPlaceholder []byte

	record     asset.DataInternal
	depHandles []asset.Handle
	gpuHandles []asset.GPUHandleRef

	ok      bool
	errDesc string
	persist bool // a freshly-produced bake that must be written back to cache
}

// runLoadGroup drives the Load Pipeline for one group to completion,
// repeatedly draining whatever is queued (the original submission, then
// whatever the dependency harvest step feeds back) until nothing remains
// (spec §4.7 step 4: "breadth-first ... until no new handles appear").
func (m *Manager) runLoadGroup(groupHandle asset.Handle) {
	g, ok := m.Groups.Get(groupHandle)
	if !ok {
		corelog.Errorf("pipeline.load", "DispatchLoad on unknown group %v", groupHandle)
		return
	}
	if !g.BeginLoad() {
		corelog.Errorf("pipeline.load", "DispatchLoad on non-Idle group %v", groupHandle)
		return
	}

	for {
		handles := g.DrainLoadList()
		if len(handles) == 0 {
			break
		}
		m.runLoadHandles(handles, g)
	}
	g.FinishLoad()
}

func (m *Manager) runLoadHandles(handles []asset.Handle, g *asset.Group) {
	batchSize := m.Cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(handles)
	}
	for start := 0; start < len(handles); start += batchSize {
		end := start + batchSize
		if end > len(handles) {
			end = len(handles)
		}
		m.runOneBatch(handles[start:end], g)
	}
}

// runOneBatch implements spec §4.7 steps 1-7 for a single batch.
func (m *Manager) runOneBatch(handles []asset.Handle, g *asset.Group) {
	tasks := make([]*loadTask, len(handles))
	for i, h := range handles {
		tasks[i] = m.planTask(h)
	}

	m.bakeAll(tasks)       // steps 2-3: dispatch bakes, await remote responses
	m.harvestDependencies(tasks, g) // step 4
	m.persistFreshBakes(tasks)      // step 5
	m.createGPUObjects(tasks)       // step 6
	m.commitAll(tasks)              // step 7
}

// planTask implements spec §4.7 step 1: predict the asset-hash, compose the
// expected cache path, and classify the source of truth for this bake.
func (m *Manager) planTask(h asset.Handle) *loadTask {
	t := &loadTask{handle: h}

	params, ok := m.DB.GetParams(h)
	if !ok {
		t.errDesc = "handle not alive"
		return t
	}
	t.params = params

	desc, ok := m.Registry.GetIncludingTombstoned(params.TypeID)
	if !ok {
		t.errDesc = "unregistered asset type"
		return t
	}
	t.typeName = desc.Name
	t.failedPlaceholder = desc.FailedPlaceholder
	t.skipGPU = m.Registry.IsTombstoned(params.TypeID)
	m.DB.SetLoadingPlaceholder(h, desc.AsyncPlaceholder)
	t.meta = loadMeta(m.VFS, params.Path, params.Platform)

	paramsHash := params.Hash()
	relPath := m.VFS.StripMountPath(params.Path)
	srcSize, srcMod, srcOK := m.VFS.Stat(params.Path)
	computedHash := cachestore.ComputeAssetHash(params.Path, paramsHash, srcSize, srcMod, t.meta.size, t.meta.mod)

	t.kind = planSource
	if srcOK && computedHash != 0 {
		path := cachestore.EntryPath(m.Store.Dir(), relPath, computedHash, desc.Name)
		if cachestore.Exists(path) {
			t.kind = planBaked
			t.cachePath = path
			t.assetHash = computedHash
		}
	}
	if t.kind == planSource {
		if m.Store.CacheOnly() {
			t.errDesc = "cache-only mode: no cached entry for asset"
			return t
		}
		if m.VFS.GetMountType(params.Path) == vfs.MountRemote {
			t.kind = planBakedRemote
		}
	}
	return t
}

// bakeAll runs steps 2-3 across the batch in parallel, bounded by
// cfg.LongWorkers (baking and remote round trips are both long-running work,
// spec §4.4 "long worker pool").
func (m *Manager) bakeAll(tasks []*loadTask) {
	sem := make(chan struct{}, maxInt(m.Cfg.LongWorkers, 1))
	var eg errgroup.Group
	for _, t := range tasks {
		if t.errDesc != "" {
			continue
		}
		t := t
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			m.bakeOne(t)
			return nil
		})
	}
	_ = eg.Wait()
}

func (m *Manager) bakeOne(t *loadTask) {
	switch t.kind {
	case planBaked:
		m.bakeFromCache(t)
	case planBakedRemote:
		m.bakeFromRemote(t)
	default:
		m.bakeFromSource(t)
	}
}

func (m *Manager) bakeFromCache(t *loadTask) {
	raw, err := cachestore.ReadEntry(t.cachePath)
	if err != nil {
		corelog.Debugf(t.params.Path, "cache entry unreadable (%v), rebaking from source", err)
		t.kind = planSource
		m.bakeFromSource(t)
		return
	}
	rec, err := asset.Unmarshal(raw)
	if err != nil {
		corelog.Debugf(t.params.Path, "cache entry corrupt (%v), rebaking from source", err)
		t.kind = planSource
		m.bakeFromSource(t)
		return
	}
	t.record = rec
	t.ok = true
}

func (m *Manager) bakeFromSource(t *loadTask) {
	desc, ok := m.Registry.GetIncludingTombstoned(t.params.TypeID)
	if !ok || desc.Baker == nil {
		t.errDesc = "no baker registered for type"
		return
	}
	source := m.VFS.Read(t.params.Path, vfs.FlagNone)
	if !source.IsValid() {
		t.errDesc = "source file unreadable"
		return
	}
	builder := baker.NewBuilder(t.meta.flat)
	in := baker.Input{
		TypeID:   t.params.TypeID,
		Path:     t.params.Path,
		Platform: uint32(t.params.Platform),
		Extra:    t.params.Extra,
		Source:   source.Data,
		Meta:     t.meta.flat,
	}
	ok2, errDesc := desc.Baker.Bake(context.Background(), in, builder)
	if !ok2 {
		t.errDesc = errDesc
		return
	}
	t.record = asset.FromBuilder(builder, t.meta.kv)
	t.ok = true
	t.persist = true

	relPath := m.VFS.StripMountPath(t.params.Path)
	srcSize, srcMod, _ := m.VFS.Stat(t.params.Path)
	t.assetHash = cachestore.ComputeAssetHash(t.params.Path, t.params.Hash(), srcSize, srcMod, t.meta.size, t.meta.mod)
	t.cachePath = cachestore.EntryPath(m.Store.Dir(), relPath, t.assetHash, desc.Name)
}

func (m *Manager) bakeFromRemote(t *loadTask) {
	if m.RemoteBus == nil || !m.RemoteBus.IsConnected() {
		t.errDesc = "no connected remote bus for remote-mounted source"
		return
	}
	resp, err := m.RemoteBus.ExecuteCommandSync(remote.CmdLoadAsset, encodeLoadAssetRequest(t.params))
	if err != nil {
		t.errDesc = err.Error()
		return
	}
	if len(resp) < 4 {
		t.errDesc = "malformed bake-server response"
		return
	}
	t.assetHash = binary.LittleEndian.Uint32(resp[:4])
	rec, err := asset.Unmarshal(resp[4:])
	if err != nil {
		t.errDesc = "corrupt bake-server response: " + err.Error()
		return
	}
	t.record = rec
	t.ok = true
	t.persist = true // mirror the remote bake into the local cache too

	desc, _ := m.Registry.Get(t.params.TypeID)
	relPath := m.VFS.StripMountPath(t.params.Path)
	t.cachePath = cachestore.EntryPath(m.Store.Dir(), relPath, t.assetHash, desc.Name)
}

// harvestDependencies implements spec §4.7 step 4: resolve every dependency
// entry to a handle (creating it if new, reusing it if an equal params-hash
// is already loaded), patch the resolved handle into objData at its
// recorded offset, and feed newly-created handles back through the group so
// the next pass through runLoadGroup's loop picks them up.
func (m *Manager) harvestDependencies(tasks []*loadTask, g *asset.Group) {
	for _, t := range tasks {
		if !t.ok {
			continue
		}
		objData := append([]byte(nil), t.record.ObjData...)
		deps := make([]asset.Handle, 0, len(t.record.Dependencies))
		for _, dep := range t.record.Dependencies {
			depParams := asset.Params{TypeID: dep.TypeID, Path: dep.Path, Platform: t.params.Platform, Extra: dep.Extra}
			depHandle, isNew := m.DB.CreateOrFetchHandle(depParams)
			deps = append(deps, depHandle)
			if isNew {
				g.AppendLoadList(depHandle)
			}
			if dep.ObjOffset >= 0 && int(dep.ObjOffset)+4 <= len(objData) {
				binary.LittleEndian.PutUint32(objData[dep.ObjOffset:], uint32(depHandle))
			}
		}
		t.record.ObjData = objData
		t.depHandles = deps
	}
}

// persistFreshBakes implements spec §4.7 step 5: write cache entries and
// update the hash-lookup table for every task that wasn't already a cache
// hit. Writes happen synchronously here (the batch is already running off
// the scheduler's single in-flight job, so there's no contention to hide
// behind a goroutine); the hash-lookup table itself flushes asynchronously
// via the scheduler tick (spec §4.6 step 3).
func (m *Manager) persistFreshBakes(tasks []*loadTask) {
	for _, t := range tasks {
		if !t.ok || !t.persist {
			continue
		}
		raw, err := t.record.Marshal()
		if err != nil {
			corelog.Errorf(t.params.Path, "failed to marshal bake for caching: %v", err)
			continue
		}
		if err := cachestore.WriteEntry(t.cachePath, raw); err != nil {
			corelog.Errorf(t.params.Path, "failed to write cache entry: %v", err)
			continue
		}
		key := asset.LookupKey{TypeID: t.params.TypeID, ParamsHash: t.params.Hash()}
		m.Store.SetLookup(key, t.assetHash)
	}
}

// createGPUObjects implements spec §4.7 step 6: create every queued GPU
// buffer/texture in parallel and patch the resulting native handle into
// objData at its recorded offset. Skipped entirely when the caller asked
// for SkipGPUObjects (e.g. the bake server, or a headless validation load).
func (m *Manager) createGPUObjects(tasks []*loadTask) {
	sem := make(chan struct{}, maxInt(m.Cfg.ShortWorkers, 1))
	var eg errgroup.Group
	for _, t := range tasks {
		if !t.ok || t.params.SkipGPUObjects || t.skipGPU || len(t.record.GPUObjects) == 0 {
			continue
		}
		t := t
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			m.createGPUObjectsOne(t)
			return nil
		})
	}
	_ = eg.Wait()
}

func (m *Manager) createGPUObjectsOne(t *loadTask) {
	ctx := context.Background()
	objData := t.record.ObjData
	for _, g := range t.record.GPUObjects {
		var native uint64
		var err error
		if g.IsTexture {
			native, err = m.GPU.CreateTexture(ctx, baker.GPUTextureDesc{Kind: g.Kind, Width: g.Width, Height: g.Height, Format: g.Format, Content: g.Content})
		} else {
			native, err = m.GPU.CreateBuffer(ctx, baker.GPUBufferDesc{Kind: g.Kind, Size: g.Size, Content: g.Content})
		}
		if err != nil {
			t.ok = false
			t.errDesc = "GPU object creation failed: " + err.Error()
			return
		}
		t.gpuHandles = append(t.gpuHandles, asset.GPUHandleRef{IsTexture: g.IsTexture, Native: native})
		if g.ObjOffset >= 0 && int(g.ObjOffset)+8 <= len(objData) {
			binary.LittleEndian.PutUint64(objData[g.ObjOffset:], native)
		}
	}
	t.record.ObjData = objData
}

// commitAll implements spec §4.7 step 7: promote each task's scratch bytes
// into the data allocator and publish them on the asset header, or flip the
// header to LoadFailed.
func (m *Manager) commitAll(tasks []*loadTask) {
	for _, t := range tasks {
		if !t.ok {
			corelog.Debugf(t.params.Path, "load failed: %s", t.errDesc)
			m.DB.SetLoadFailed(t.handle, t.failedPlaceholder)
			continue
		}
		committed := m.DB.DataAllocator().Commit(t.record.ObjData)
		m.DB.SetLoaded(t.handle, committed, t.depHandles, t.gpuHandles)
	}
}
