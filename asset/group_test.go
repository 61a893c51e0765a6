package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAddToLoadQueueRequiresIdle(t *testing.T) {
	g := NewGroup()
	assert.True(t, g.AddToLoadQueue(NewHandle(1, 0)))
	g.setState(GroupLoading)
	assert.False(t, g.AddToLoadQueue(NewHandle(2, 0)))
}

func TestGroupRetainedSupersetOfLoadList(t *testing.T) {
	g := NewGroup()
	h1, h2 := NewHandle(1, 0), NewHandle(2, 0)
	g.AddToLoadQueue(h1)
	g.AddToLoadQueue(h2)
	assert.ElementsMatch(t, []Handle{h1, h2}, g.RetainedList())

	drained := g.drainLoadList()
	assert.ElementsMatch(t, []Handle{h1, h2}, drained)
	assert.Empty(t, g.LoadList)
	// Retained list survives draining the load list (spec §3 invariant 2).
	assert.ElementsMatch(t, []Handle{h1, h2}, g.RetainedList())
}

func TestGroupAppendLoadListForDependencyHarvest(t *testing.T) {
	g := NewGroup()
	h1 := NewHandle(1, 0)
	g.AddToLoadQueue(h1)
	g.drainLoadList()

	dep := NewHandle(2, 0)
	g.appendLoadList(dep)
	assert.Equal(t, []Handle{dep}, g.LoadList)
	assert.ElementsMatch(t, []Handle{h1, dep}, g.RetainedList())
}

func TestGroupPoolCreateDestroy(t *testing.T) {
	p := NewGroupPool()
	h := p.CreateGroup()
	g, ok := p.Get(h)
	require.True(t, ok)
	assert.True(t, g.IsIdle())

	g.setState(GroupLoading)
	assert.False(t, p.Destroy(h), "destroy must refuse a non-Idle group")

	g.setState(GroupIdle)
	assert.True(t, p.Destroy(h))
	_, ok = p.Get(h)
	assert.False(t, ok)
}

func TestGroupStateStringer(t *testing.T) {
	assert.Equal(t, "Idle", GroupIdle.String())
	assert.Equal(t, "Loaded", GroupLoaded.String())
}
