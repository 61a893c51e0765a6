// Package modelbaker is a reference Baker for 3D mesh assets. Parsing a
// real interchange format (glTF, FBX, OBJ) is explicitly external per spec
// §1, and none of the retrieved examples vendor a mesh-format parser (see
// DESIGN.md) — so this baker treats the source as an already-packed vertex
// buffer (one draw call's worth of interleaved vertex data) and wires it
// straight into a single GPU buffer object, which is enough to exercise the
// Load Pipeline's GPU-object path for geometry. It records no dependencies.
package modelbaker

import (
	"context"
	"fmt"

	"github.com/kestrelengine/assetpipe/baker"
)

const headerFixedFields = 8 // vertexCount u32, stride u32

// Baker wires a raw interleaved vertex buffer into a single GPU buffer object.
type Baker struct{}

// New returns a ready-to-register modelbaker.Baker.
func New() *Baker { return &Baker{} }

func (Baker) Bake(_ context.Context, in baker.Input, b *baker.Builder) (bool, string) {
	if len(in.Source) == 0 {
		return false, "modelbaker: empty source"
	}
	stride := 32 // position(12) + normal(12) + uv(8), the default layout
	if v := b.GetMetaValue("vertexStride", ""); v != "" {
		if n, err := parseUint(v); err == nil && n > 0 {
			stride = n
		}
	}
	if len(in.Source)%stride != 0 {
		return false, fmt.Sprintf("modelbaker: source size %d is not a multiple of stride %d", len(in.Source), stride)
	}
	vertexCount := len(in.Source) / stride

	objData := make([]byte, headerFixedFields+8)
	putU32(objData[0:4], uint32(vertexCount))
	putU32(objData[4:8], uint32(stride))

	b.AddGpuBufferObject(int64(headerFixedFields), baker.GPUBufferDesc{
		Kind:    "vertex",
		Size:    uint64(len(in.Source)),
		Content: in.Source,
	})

	b.SetObjData(objData)
	return true, ""
}

// Reload declines: a new vertex layout or count needs the GPU buffer recreated.
func (Baker) Reload([]byte, []byte) bool { return false }

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func parseUint(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
