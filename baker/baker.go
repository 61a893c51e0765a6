// Package baker defines the contract the asset pipeline core requires of
// per-type bakers (spec §4.8, §6). Bakers themselves (GLTF parser, image
// encoder, shader compiler) are external per spec §1; this package pins down
// only the interface.
package baker

import "context"

// GPUBufferDesc and GPUTextureDesc are opaque creation-parameter bundles for
// the graphics backend, which is out of scope per spec §1. The core and the
// load pipeline only need to carry these through to an external
// GPUObjectCreator (see pipeline.GPUBackend); their contents are baker- and
// backend-specific.
type GPUBufferDesc struct {
	Kind    string // backend-defined, e.g. "vertex", "index", "uniform"
	Size    uint64
	Content []byte
}

type GPUTextureDesc struct {
	Kind    string // backend-defined, e.g. "2d", "cube"
	Width   uint32
	Height  uint32
	Format  string
	Content []byte
}

// Dependency is one entry of the dependency list described in spec §3: a
// reference to another asset that must be resolved (and whose resulting
// handle must be patched back into objData) before this asset is considered
// loaded.
type Dependency struct {
	Path       string
	TypeID     uint32
	Extra      []byte
	ObjOffset  int64 // offset into objData where the resolved handle is written
}

// GPUObject is one entry of the GPU object descriptor list from spec §3.
type GPUObject struct {
	IsTexture bool
	Buffer    GPUBufferDesc
	Texture   GPUTextureDesc
	ObjOffset int64 // offset into objData where the created GPU handle is written
}

// Builder is the per-bake accumulator a Baker populates (spec §6's
// AssetDataBuilder: SetObjData/AddDependency/AddGpuBufferObject/
// AddGpuTextureObject/GetMetaValue).
type Builder struct {
	objData      []byte
	dependencies []Dependency
	gpuObjects   []GPUObject
	meta         map[string]string
}

// NewBuilder creates a builder pre-loaded with the meta key/values loaded
// from the asset's sidecar file (spec §3: "flat array of meta key/value
// pairs loaded from a sidecar file").
func NewBuilder(meta map[string]string) *Builder {
	if meta == nil {
		meta = map[string]string{}
	}
	return &Builder{meta: meta}
}

// SetObjData sets the user-visible object payload. Called at most once per
// bake; a second call replaces the previous payload.
func (b *Builder) SetObjData(data []byte) {
	b.objData = data
}

// AddDependency records a dependency whose resolved handle must later be
// patched into objData at objOffset.
func (b *Builder) AddDependency(objOffset int64, params Dependency) {
	params.ObjOffset = objOffset
	b.dependencies = append(b.dependencies, params)
}

// AddGpuBufferObject queues a GPU buffer to be created by the load pipeline;
// the resulting handle is patched into objData at objOffset.
func (b *Builder) AddGpuBufferObject(objOffset int64, desc GPUBufferDesc) {
	b.gpuObjects = append(b.gpuObjects, GPUObject{Buffer: desc, ObjOffset: objOffset})
}

// AddGpuTextureObject queues a GPU texture to be created by the load
// pipeline; the resulting handle is patched into objData at objOffset.
func (b *Builder) AddGpuTextureObject(objOffset int64, desc GPUTextureDesc) {
	b.gpuObjects = append(b.gpuObjects, GPUObject{IsTexture: true, Texture: desc, ObjOffset: objOffset})
}

// GetMetaValue looks up a sidecar meta key, falling back to def if absent.
func (b *Builder) GetMetaValue(key, def string) string {
	if v, ok := b.meta[key]; ok {
		return v
	}
	return def
}

// ObjData returns the accumulated payload.
func (b *Builder) ObjData() []byte { return b.objData }

// Dependencies returns the accumulated dependency list.
func (b *Builder) Dependencies() []Dependency { return b.dependencies }

// GPUObjects returns the accumulated GPU object descriptor list.
func (b *Builder) GPUObjects() []GPUObject { return b.gpuObjects }

// Input bundles everything a baker needs to produce AssetData: the request
// parameters, the source bytes (nil when baking from a remote response that
// already carries baked output), and the sidecar meta values.
type Input struct {
	TypeID   uint32
	Path     string
	Platform uint32
	Extra    []byte
	Source   []byte
	Meta     map[string]string
}

// Baker is the per-asset-type implementation the core requires (spec §4.8).
// Bake populates builder and returns ok=false with a short errDesc on
// failure (spec §7's (bool, message) error contract — never an error
// return, so the short description round-trips identically through the
// Remote Command Bus's 1024-byte error-desc field).
type Baker interface {
	Bake(ctx context.Context, in Input, builder *Builder) (ok bool, errDesc string)

	// Reload is optional; implementations that don't support hot-reload
	// should return false unconditionally, which keeps the old data.
	Reload(newData, oldData []byte) bool
}
