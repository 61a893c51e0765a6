package pipeline

import (
	"context"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/baker"
	"github.com/kestrelengine/assetpipe/corelog"
	"github.com/kestrelengine/assetpipe/vfs"
)

// WatchSourceChanges registers onSourceChanged with the VFS so a local
// mount's file-change events re-dispatch the affected handles (spec §4.7
// last tie-break, §7: the file-change event is the only retry mechanism
// named for a previously-failed or stale load).
func (m *Manager) WatchSourceChanges() {
	m.VFS.RegisterFileChangeCallback(m.onSourceChanged)
}

// onSourceChanged looks up every live handle sourced from path and reloads
// each one in its own goroutine, so a burst of watcher events never blocks
// the VFS's dispatch loop.
func (m *Manager) onSourceChanged(path string) {
	for _, h := range m.DB.HandlesByPath(path) {
		h := h
		go m.reloadHandle(h)
	}
}

// reloadHandle re-bakes h's source and, through baker.Baker.Reload, asks the
// type whether the new bytes should replace what's currently committed
// (spec §4.8: a baker may reject a reload and keep serving the old data).
func (m *Manager) reloadHandle(h asset.Handle) {
	params, ok := m.DB.GetParams(h)
	if !ok {
		return
	}
	desc, ok := m.Registry.GetIncludingTombstoned(params.TypeID)
	if !ok || desc.Baker == nil || m.Registry.IsTombstoned(params.TypeID) {
		return
	}

	source := m.VFS.Read(params.Path, vfs.FlagNone)
	if !source.IsValid() {
		corelog.Debugf(params.Path, "reload: source unreadable, keeping previous data")
		return
	}

	meta := loadMeta(m.VFS, params.Path, params.Platform)
	builder := baker.NewBuilder(meta.flat)
	in := baker.Input{
		TypeID:   params.TypeID,
		Path:     params.Path,
		Platform: uint32(params.Platform),
		Extra:    params.Extra,
		Source:   source.Data,
		Meta:     meta.flat,
	}
	ok2, errDesc := desc.Baker.Bake(context.Background(), in, builder)
	if !ok2 {
		corelog.Debugf(params.Path, "reload bake failed: %s", errDesc)
		return
	}

	oldData := m.DB.GetObjData(h)
	rec := asset.FromBuilder(builder, meta.kv)
	if !desc.Baker.Reload(rec.ObjData, oldData) {
		corelog.Debugf(params.Path, "reload rejected by baker, keeping previous data")
		return
	}

	committed := m.DB.DataAllocator().Commit(rec.ObjData)
	m.DB.SetLoaded(h, committed, m.DB.Dependencies(h), m.DB.GPUHandles(h))
}
