// Package imagebaker is a reference Baker for 2D image assets (PNG/JPEG).
// Real projects plug in a dedicated encoder (BC7/ASTC/etc); per spec §1
// that encoder is out of scope, so this baker uses Go's standard image
// codecs directly rather than a third-party image library — none of the
// retrieved examples vendor one (see DESIGN.md) — and emits an uncompressed
// RGBA8 texture, which is enough to exercise the Load Pipeline's GPU-object
// and dependency-free path end to end.
package imagebaker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kestrelengine/assetpipe/baker"
)

// header is the fixed-size prefix imagebaker writes into objData (spec §3's
// "AssetDataInternal is a relocatable blob rooted at objData"): width,
// height, mip count, then an 8-byte placeholder per mip for the GPU texture
// handle the load pipeline patches in at ObjOffset.
const headerFixedFields = 12 // width u32, height u32, mipCount u32

// Baker decodes PNG/JPEG sources into an uncompressed RGBA8 texture.
type Baker struct{}

// New returns a ready-to-register imagebaker.Baker.
func New() *Baker { return &Baker{} }

func (Baker) Bake(_ context.Context, in baker.Input, b *baker.Builder) (bool, string) {
	img, _, err := image.Decode(bytes.NewReader(in.Source))
	if err != nil {
		return false, fmt.Sprintf("imagebaker: decode failed: %v", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return false, "imagebaker: empty image"
	}

	sRGB := b.GetMetaValue("sRGB", "true") == "true"
	generateMips := b.GetMetaValue("generateMips", "false") == "true"

	levels := [][]byte{rgba8(img)}
	w, h := width, height
	if generateMips {
		cur := levels[0]
		for w > 1 || h > 1 {
			nw, nh := max1(w/2), max1(h/2)
			cur = downsampleBox(cur, w, h, nw, nh)
			levels = append(levels, cur)
			w, h = nw, nh
		}
	}

	format := "rgba8"
	if sRGB {
		format = "srgb8"
	}

	mipCount := len(levels)
	objData := make([]byte, headerFixedFields+mipCount*8)
	putU32(objData[0:4], uint32(width))
	putU32(objData[4:8], uint32(height))
	putU32(objData[8:12], uint32(mipCount))

	for i, level := range levels {
		offset := int64(headerFixedFields + i*8)
		lw, lh := mipDims(width, height, i)
		b.AddGpuTextureObject(offset, baker.GPUTextureDesc{
			Kind:    "2d",
			Width:   uint32(lw),
			Height:  uint32(lh),
			Format:  format,
			Content: level,
		})
	}

	b.SetObjData(objData)
	return true, ""
}

// Reload always declines: a recompiled image texture must go through a full
// re-bake so its GPU objects are recreated with the new dimensions/content.
func (Baker) Reload([]byte, []byte) bool { return false }

func mipDims(w, h, level int) (int, int) {
	for i := 0; i < level; i++ {
		w, h = max1(w/2), max1(h/2)
	}
	return w, h
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func rgba8(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out[i] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(bl >> 8)
			out[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return out
}

// downsampleBox halves src (w x h RGBA8) to (nw x nh) with a simple 2x2 box
// filter, clamping at the edges when a dimension is odd.
func downsampleBox(src []byte, w, h, nw, nh int) []byte {
	out := make([]byte, nw*nh*4)
	for y := 0; y < nh; y++ {
		sy0 := min(y*2, h-1)
		sy1 := min(y*2+1, h-1)
		for x := 0; x < nw; x++ {
			sx0 := min(x*2, w-1)
			sx1 := min(x*2+1, w-1)
			for c := 0; c < 4; c++ {
				sum := int(src[(sy0*w+sx0)*4+c]) + int(src[(sy0*w+sx1)*4+c]) +
					int(src[(sy1*w+sx0)*4+c]) + int(src[(sy1*w+sx1)*4+c])
				out[(y*nw+x)*4+c] = byte(sum / 4)
			}
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
