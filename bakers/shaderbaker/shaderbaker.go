// Package shaderbaker is a reference Baker for shader programs. Compiling
// GLSL/HLSL to SPIR-V/DXIL is explicitly external per spec §1 and no shader
// compiler is vendored anywhere in the retrieved examples (see DESIGN.md),
// so this baker treats the source as pre-compiled bytecode (or, with
// debug=true, plain text) and passes it straight through as a single GPU
// buffer object representing the shader's constant/bytecode blob. It does
// exercise the dependency-harvest path: an "include" sidecar meta key
// (comma-separated asset paths) becomes one Dependency per entry, resolved
// to the same type-id as the requesting shader (e.g. a vertex stage
// depending on a shared uniform-layout header).
package shaderbaker

import (
	"context"
	"strings"

	"github.com/kestrelengine/assetpipe/baker"
)

const headerFixedFields = 4 // byteCodeSize u32

// Baker passes shader source/bytecode through, resolving declared includes
// as dependencies.
type Baker struct{}

// New returns a ready-to-register shaderbaker.Baker.
func New() *Baker { return &Baker{} }

func (Baker) Bake(_ context.Context, in baker.Input, b *baker.Builder) (bool, string) {
	if len(in.Source) == 0 {
		return false, "shaderbaker: empty source"
	}
	dumpIntermediates := b.GetMetaValue("dumpIntermediates", "false") == "true"

	objData := make([]byte, headerFixedFields)
	putU32(objData[0:4], uint32(len(in.Source)))

	b.AddGpuBufferObject(int64(headerFixedFields), baker.GPUBufferDesc{
		Kind:    "shader-bytecode",
		Size:    uint64(len(in.Source)),
		Content: in.Source,
	})

	if includes := b.GetMetaValue("include", ""); includes != "" {
		for _, path := range strings.Split(includes, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			b.AddDependency(-1, baker.Dependency{Path: path, TypeID: in.TypeID})
		}
	}

	if dumpIntermediates {
		objData = append(objData, in.Source...)
	}

	b.SetObjData(objData)
	return true, ""
}

// Reload accepts hot-reload of the bytecode blob in place: a shader's GPU
// buffer content can be patched without touching dependency structure, so
// callers that support shader hot-reload can keep the old GPU object.
func (Baker) Reload(newData, oldData []byte) bool {
	return len(newData) >= headerFixedFields
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
