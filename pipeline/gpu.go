// Package pipeline implements the Load Pipeline, Unload Pipeline, and Bake
// Server Pipeline (spec §4.7): batch planning, parallel bake dispatch,
// dependency harvesting, cache persistence, GPU object creation, and commit
// into the asset database.
package pipeline

import (
	"context"

	"github.com/kestrelengine/assetpipe/baker"
)

// GPUBackend is the external graphics device collaborator (spec §1: "graphics
// device object creation" is out of scope; the core only needs the interface
// named here). Implementations create and destroy buffer/texture objects and
// return an opaque native handle the asset database stores in a
// asset.GPUHandleRef.
type GPUBackend interface {
	CreateBuffer(ctx context.Context, desc baker.GPUBufferDesc) (native uint64, err error)
	CreateTexture(ctx context.Context, desc baker.GPUTextureDesc) (native uint64, err error)
	Destroy(native uint64, isTexture bool)
}

// NullGPUBackend is a no-op GPUBackend for headless operation (bake-server
// mode, or Params.SkipGPUObjects loads) — it never actually allocates device
// resources, matching SPEC_FULL.md's supplemented "dontCreateResources" flag.
type NullGPUBackend struct{}

func (NullGPUBackend) CreateBuffer(context.Context, baker.GPUBufferDesc) (uint64, error) {
	return 0, nil
}
func (NullGPUBackend) CreateTexture(context.Context, baker.GPUTextureDesc) (uint64, error) {
	return 0, nil
}
func (NullGPUBackend) Destroy(uint64, bool) {}
