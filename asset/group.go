package asset

import (
	"sync"
	"sync/atomic"

	"github.com/kestrelengine/assetpipe/asset/alloc"
	"github.com/kestrelengine/assetpipe/corelog"
)

// GroupState is an Asset Group's lifecycle state (spec §3).
type GroupState int32

const (
	GroupIdle GroupState = iota
	GroupLoading
	GroupLoaded
	GroupUnloading
)

func (s GroupState) String() string {
	switch s {
	case GroupLoading:
		return "Loading"
	case GroupLoaded:
		return "Loaded"
	case GroupUnloading:
		return "Unloading"
	default:
		return "Idle"
	}
}

// Group batches asset handles with a coordinated load/unload lifecycle
// (spec §3 Asset Group). LoadList drains into RetainedList on a successful
// AddToLoadQueue (invariant 2); RetainedList is what Unload iterates.
type Group struct {
	state    int32 // GroupState, accessed via atomic for lock-free observation (spec §5 "release/acquire on the group's state word")
	mu       sync.Mutex
	LoadList []Handle
	Retained []Handle
}

// NewGroup creates an Idle group with empty lists.
func NewGroup() *Group {
	return &Group{state: int32(GroupIdle)}
}

// State returns the group's current state via an acquire load.
func (g *Group) State() GroupState {
	return GroupState(atomic.LoadInt32(&g.state))
}

func (g *Group) setState(s GroupState) {
	atomic.StoreInt32(&g.state, int32(s))
}

// AddToLoadQueue enqueues h for the next Load() call (spec §3 invariant 2,
// §6 Group::AddToLoadQueue). Legal only while Idle.
func (g *Group) AddToLoadQueue(h Handle) bool {
	if g.State() != GroupIdle {
		corelog.Errorf("asset.group", "AddToLoadQueue called on non-Idle group (state=%v)", g.State())
		return false
	}
	g.mu.Lock()
	g.LoadList = append(g.LoadList, h)
	g.Retained = append(g.Retained, h)
	g.mu.Unlock()
	return true
}

// drainLoadList hands the current load-list to the scheduler's dispatch and
// clears it, so subsequent batches (dependency harvesting, spec §4.7 step 4)
// can append freshly-discovered handles without re-processing the originals.
func (g *Group) drainLoadList() []Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := g.LoadList
	g.LoadList = nil
	return list
}

// DrainLoadList is the load pipeline's entry point into drainLoadList,
// exported across the package boundary (spec §4.7 step 1: each pass through
// the pipeline claims whatever is currently queued).
func (g *Group) DrainLoadList() []Handle { return g.drainLoadList() }

// appendLoadList is used by the load pipeline's dependency harvest step to
// feed newly-created dependency handles back through the same group
// (spec §4.7 step 4: "breadth-first and bounded by existing handles").
func (g *Group) appendLoadList(handles ...Handle) {
	g.mu.Lock()
	g.LoadList = append(g.LoadList, handles...)
	g.Retained = append(g.Retained, handles...)
	g.mu.Unlock()
}

// AppendLoadList exports appendLoadList for the load pipeline's dependency
// harvest step (spec §4.7 step 4), which lives in package pipeline.
func (g *Group) AppendLoadList(handles ...Handle) { g.appendLoadList(handles...) }

// BeginLoad transitions an Idle group to Loading (spec §3 invariant 2's
// companion: Load() is only meaningful once). Returns false if the group
// wasn't Idle.
func (g *Group) BeginLoad() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if GroupState(atomic.LoadInt32(&g.state)) != GroupIdle {
		return false
	}
	g.setState(GroupLoading)
	return true
}

// FinishLoad transitions a Loading group to Loaded.
func (g *Group) FinishLoad() { g.setState(GroupLoaded) }

// BeginUnload transitions a Loaded or Idle group to Unloading (spec §3
// invariant: Unload requires the group to have finished loading). Returns
// false for a group that is Loading or already Unloading.
func (g *Group) BeginUnload() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := GroupState(atomic.LoadInt32(&g.state))
	if s != GroupLoaded && s != GroupIdle {
		return false
	}
	g.setState(GroupUnloading)
	return true
}

// FinishUnload transitions an Unloading group back to Idle and clears its
// retained/load lists, making it eligible for AddToLoadQueue again.
func (g *Group) FinishUnload() {
	g.mu.Lock()
	g.Retained = nil
	g.LoadList = nil
	g.mu.Unlock()
	g.setState(GroupIdle)
}

// RetainedList returns a copy of the group's full retained handle set.
func (g *Group) RetainedList() []Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Handle(nil), g.Retained...)
}

// IsIdle reports whether the group is in state Idle.
func (g *Group) IsIdle() bool { return g.State() == GroupIdle }

// IsLoadFinished reports whether the group is Loaded or Idle.
func (g *Group) IsLoadFinished() bool {
	s := g.State()
	return s == GroupLoaded || s == GroupIdle
}

// GroupPool is the handle pool backing CreateGroup/DestroyGroup (spec §6).
// Kept separate from the asset Database's header pool since groups and
// assets are distinct handle namespaces.
type GroupPool struct {
	pool *alloc.HeaderPool[*Group]
}

// NewGroupPool creates an empty group pool.
func NewGroupPool() *GroupPool {
	return &GroupPool{pool: alloc.NewHeaderPool[*Group]()}
}

// CreateGroup allocates a new Idle group and returns its handle (spec §6 Asset::CreateGroup).
func (p *GroupPool) CreateGroup() Handle {
	idx, gen := p.pool.Alloc(NewGroup())
	return NewHandle(idx, gen)
}

// Get resolves a group handle to its *Group, or (nil, false) if it is not alive.
func (p *GroupPool) Get(h Handle) (*Group, bool) {
	g, ok := p.pool.Get(h.Index(), h.Generation())
	if !ok || g == nil {
		return nil, false
	}
	return g, true
}

// Destroy frees g's slot. Legal only while Idle (spec §3 invariant: "Destroy
// requires Idle state").
func (p *GroupPool) Destroy(h Handle) bool {
	g, ok := p.Get(h)
	if !ok {
		return false
	}
	if !g.IsIdle() {
		corelog.Errorf("asset.group", "DestroyGroup called on non-Idle group %v (state=%v)", h, g.State())
		return false
	}
	p.pool.Free(h.Index())
	return true
}
