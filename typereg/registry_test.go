package typereg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicateIDAndName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Descriptor{TypeID: 1, Name: "a"}))
	assert.Error(t, r.Register(Descriptor{TypeID: 1, Name: "b"}))
	assert.Error(t, r.Register(Descriptor{TypeID: 2, Name: "a"}))
}

func TestUnregisterTombstonesWithoutFreeingTheSlot(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Descriptor{TypeID: 1, Name: "a"}))
	require.NoError(t, r.Unregister(1))

	_, ok := r.Get(1)
	assert.False(t, ok, "Get must hide a tombstoned type")
	assert.True(t, r.IsTombstoned(1))

	desc, ok := r.GetIncludingTombstoned(1)
	require.True(t, ok, "GetIncludingTombstoned must still see a tombstoned type")
	assert.Equal(t, "a", desc.Name)

	assert.Error(t, r.Register(Descriptor{TypeID: 1, Name: "c"}), "a tombstoned slot must never be reused")
}

func TestGetIncludingTombstonedUnknownType(t *testing.T) {
	r := New()
	_, ok := r.GetIncludingTombstoned(0xDEAD)
	assert.False(t, ok)
}
