package shaderbaker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/baker"
)

func TestBakePassesThroughBytecode(t *testing.T) {
	src := []byte("#version 450\nvoid main() {}")
	b := baker.NewBuilder(nil)
	ok, errDesc := New().Bake(context.Background(), baker.Input{Source: src, TypeID: 7}, b)
	require.True(t, ok, errDesc)
	require.Len(t, b.GPUObjects(), 1)
	assert.Equal(t, src, b.GPUObjects()[0].Buffer.Content)
	assert.Empty(t, b.Dependencies())
}

func TestBakeResolvesIncludes(t *testing.T) {
	src := []byte("shader body")
	b := baker.NewBuilder(map[string]string{"include": "common.glsl, lighting.glsl"})
	ok, errDesc := New().Bake(context.Background(), baker.Input{Source: src, TypeID: 7}, b)
	require.True(t, ok, errDesc)
	require.Len(t, b.Dependencies(), 2)
	assert.Equal(t, "common.glsl", b.Dependencies()[0].Path)
	assert.Equal(t, uint32(7), b.Dependencies()[0].TypeID)
}

func TestBakeDumpsIntermediatesWhenRequested(t *testing.T) {
	src := []byte("shader source")
	plain := baker.NewBuilder(nil)
	_, _ = New().Bake(context.Background(), baker.Input{Source: src}, plain)

	dump := baker.NewBuilder(map[string]string{"dumpIntermediates": "true"})
	_, _ = New().Bake(context.Background(), baker.Input{Source: src}, dump)

	assert.Greater(t, len(dump.ObjData()), len(plain.ObjData()))
}

func TestBakeRejectsEmptySource(t *testing.T) {
	b := baker.NewBuilder(nil)
	ok, _ := New().Bake(context.Background(), baker.Input{Source: nil}, b)
	assert.False(t, ok)
}
