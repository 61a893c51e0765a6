package pipeline

import (
	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/corelog"
)

// runUnloadGroup implements the Unload Pipeline (spec §4.7, §4.6): drop one
// reference from every handle the group retained, then cascade-teardown any
// handle (in the group or reached transitively through its dependency
// graph) whose refcount reaches zero.
func (m *Manager) runUnloadGroup(groupHandle asset.Handle) {
	g, ok := m.Groups.Get(groupHandle)
	if !ok {
		corelog.Errorf("pipeline.unload", "DispatchUnload on unknown group %v", groupHandle)
		return
	}
	if !g.BeginUnload() {
		corelog.Errorf("pipeline.unload", "DispatchUnload on a group that is still loading or already unloading (%v)", groupHandle)
		return
	}

	for _, h := range g.RetainedList() {
		m.releaseAndCascade(h)
	}
	g.FinishUnload()
}

// releaseAndCascade drops one reference from h and, if that was the last
// one, tears it down and recurses into its dependencies (spec §4.6: "unload
// cascades through the dependency graph, destroying GPU objects and freeing
// data blocks for every handle whose refcount reaches zero").
func (m *Manager) releaseAndCascade(h asset.Handle) {
	if m.DB.Release(h) > 0 {
		return
	}
	m.teardownHandle(h)
}

// teardownHandle destroys h's GPU objects, tears it down in the database,
// and recurses into its dependencies, releasing one reference from each
// (dependencies were ref'd once per referencing parent in
// harvestDependencies/CreateOrFetchHandle, so this mirrors that with a
// matching release).
func (m *Manager) teardownHandle(h asset.Handle) {
	skipGPU := false
	if params, ok := m.DB.GetParams(h); ok {
		skipGPU = m.Registry.IsTombstoned(params.TypeID)
	}
	if !skipGPU {
		for _, ref := range m.DB.GPUHandles(h) {
			m.GPU.Destroy(ref.Native, ref.IsTexture)
		}
	}
	deps := m.DB.Dependencies(h)
	m.DB.Teardown(h)
	for _, dep := range deps {
		m.releaseAndCascade(dep)
	}
}
