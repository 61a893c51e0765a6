package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/typereg"
)

func TestRunUnloadGroupCascadesTeardown(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "parent.bin", "P")
	writeSourceFile(t, srcDir, "child.bin", "C")

	m := newTestManager(t, srcDir)
	childBaker := &stubBaker{prefix: "CHILD:"}
	parentBaker := &stubBaker{prefix: "PARENT:", dep: &depSpec{path: "data/child.bin", typeID: testTypeB}}
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeA, Name: "parent", Baker: parentBaker}))
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeB, Name: "child", Baker: childBaker}))

	groupHandle := m.Groups.CreateGroup()
	group, _ := m.Groups.Get(groupHandle)
	parentHandle, _ := m.DB.CreateOrFetchHandle(asset.Params{TypeID: testTypeA, Path: "data/parent.bin"})
	group.AddToLoadQueue(parentHandle)
	m.runLoadGroup(groupHandle)

	deps := m.DB.Dependencies(parentHandle)
	require.Len(t, deps, 1)
	childHandle := deps[0]

	require.True(t, m.DB.IsAlive(parentHandle))
	require.True(t, m.DB.IsAlive(childHandle))

	m.runUnloadGroup(groupHandle)

	assert.False(t, m.DB.IsAlive(parentHandle), "parent should be torn down once its refcount hits zero")
	assert.False(t, m.DB.IsAlive(childHandle), "dependency should cascade-teardown with its only referencing parent")
	assert.Equal(t, asset.GroupIdle, group.State())
	assert.Empty(t, group.RetainedList())
}

func TestRunUnloadGroupKeepsSharedDependencyAlive(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "parent1.bin", "P1")
	writeSourceFile(t, srcDir, "parent2.bin", "P2")
	writeSourceFile(t, srcDir, "child.bin", "C")

	m := newTestManager(t, srcDir)
	childBaker := &stubBaker{prefix: "CHILD:"}
	parentBaker := &stubBaker{prefix: "PARENT:", dep: &depSpec{path: "data/child.bin", typeID: testTypeB}}
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeA, Name: "parent", Baker: parentBaker}))
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeB, Name: "child", Baker: childBaker}))

	// Two separate groups both depend on the same child path; tearing down
	// one parent must not tear down a child still referenced by the other.
	group1H := m.Groups.CreateGroup()
	group1, _ := m.Groups.Get(group1H)
	parent1, _ := m.DB.CreateOrFetchHandle(asset.Params{TypeID: testTypeA, Path: "data/parent1.bin"})
	group1.AddToLoadQueue(parent1)
	m.runLoadGroup(group1H)

	group2H := m.Groups.CreateGroup()
	group2, _ := m.Groups.Get(group2H)
	parent2, _ := m.DB.CreateOrFetchHandle(asset.Params{TypeID: testTypeA, Path: "data/parent2.bin"})
	group2.AddToLoadQueue(parent2)
	m.runLoadGroup(group2H)

	childHandle := m.DB.Dependencies(parent1)[0]
	require.Equal(t, childHandle, m.DB.Dependencies(parent2)[0], "both parents must resolve to the same deduplicated child handle")
	assert.EqualValues(t, 2, m.DB.RefCount(childHandle))

	m.runUnloadGroup(group1H)

	assert.False(t, m.DB.IsAlive(parent1))
	assert.True(t, m.DB.IsAlive(childHandle), "child is still referenced by group2, so it must survive")
	assert.EqualValues(t, 1, m.DB.RefCount(childHandle))
}
