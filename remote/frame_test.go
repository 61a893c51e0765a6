package remote

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	f := frame{
		cmd:        CmdLoadAsset,
		requestID:  0xdeadbeefcafe,
		isResponse: true,
		errorFlag:  true,
		errorDesc:  "bake failed",
		payload:    []byte("hello world"),
	}
	var buf bytes.Buffer
	require.NoError(t, f.writeTo(&buf))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.cmd, got.cmd)
	assert.Equal(t, f.requestID, got.requestID)
	assert.Equal(t, f.isResponse, got.isResponse)
	assert.Equal(t, f.errorFlag, got.errorFlag)
	assert.Equal(t, f.errorDesc, got.errorDesc)
	assert.Equal(t, f.payload, got.payload)
}

func TestFrameEmptyPayload(t *testing.T) {
	f := frame{cmd: CmdReadFile, requestID: 7}
	var buf bytes.Buffer
	require.NoError(t, f.writeTo(&buf))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.payload)
	assert.False(t, got.errorFlag)
}

func TestFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	var hdr [16]byte
	hdr[15] = 0 // placeholder, overwritten below via writeTo of a crafted header
	_ = hdr
	f := frame{cmd: 1, requestID: 1}
	require.NoError(t, f.writeTo(&buf))
	// Corrupt only the length-delimited payload field to exceed the sanity cap.
	data := buf.Bytes()
	data[len(data)-4] = 0xff
	data[len(data)-3] = 0xff
	data[len(data)-2] = 0xff
	data[len(data)-1] = 0xff
	_, err := readFrame(bytes.NewReader(data))
	assert.Error(t, err)
}
