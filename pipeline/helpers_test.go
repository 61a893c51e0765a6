package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/kestrelengine/assetpipe/baker"
)

// countingGPUBackend is a GPUBackend that counts how many objects it
// actually creates, used to assert that a tombstoned-type load skips GPU
// object creation entirely.
type countingGPUBackend struct {
	created int
}

func (g *countingGPUBackend) CreateBuffer(context.Context, baker.GPUBufferDesc) (uint64, error) {
	g.created++
	return uint64(g.created), nil
}

func (g *countingGPUBackend) CreateTexture(context.Context, baker.GPUTextureDesc) (uint64, error) {
	g.created++
	return uint64(g.created), nil
}

func (g *countingGPUBackend) Destroy(uint64, bool) {}

// depSpec describes an optional dependency a stubBaker's bake should emit.
type depSpec struct {
	path   string
	typeID uint32
}

// stubBaker is a minimal baker.Baker used across the pipeline package's
// tests: it prefixes the source bytes, optionally emits one dependency
// (reserving 4 bytes at the tail of objData for the patched handle), and
// fails outright when the source is the literal string "FAIL" — enough to
// exercise every branch of the Load Pipeline without a real asset format.
type stubBaker struct {
	prefix     string
	dep        *depSpec
	gpuObjects int
	calls      int32
}

func (b *stubBaker) Bake(_ context.Context, in baker.Input, bld *baker.Builder) (bool, string) {
	atomic.AddInt32(&b.calls, 1)
	if string(in.Source) == "FAIL" {
		return false, "stub bake failure"
	}
	data := append([]byte(b.prefix), in.Source...)
	if b.dep != nil {
		offset := int64(len(data))
		data = append(data, 0, 0, 0, 0)
		bld.AddDependency(offset, baker.Dependency{Path: b.dep.path, TypeID: b.dep.typeID})
	}
	for i := 0; i < b.gpuObjects; i++ {
		offset := int64(len(data))
		data = append(data, 0, 0, 0, 0, 0, 0, 0, 0)
		bld.AddGpuBufferObject(offset, baker.GPUBufferDesc{Size: 4})
	}
	bld.SetObjData(data)
	return true, ""
}

func (b *stubBaker) Reload(newData, oldData []byte) bool { return false }

func (b *stubBaker) callCount() int32 { return atomic.LoadInt32(&b.calls) }
