package pipeline

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/kestrelengine/assetpipe/asset"
)

// encodeLoadAssetRequest builds the LDAS request payload (spec §6, §4.7 Bake
// Server Pipeline): typeId, platform, path, and the type-specific extra
// params blob, each length-prefixed where variable.
func encodeLoadAssetRequest(p asset.Params) []byte {
	var buf bytes.Buffer
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], p.TypeID)
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint32(scratch[:], uint32(p.Platform))
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(p.Path)))
	buf.Write(scratch[:])
	buf.WriteString(p.Path)
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(p.Extra)))
	buf.Write(scratch[:])
	buf.Write(p.Extra)
	return buf.Bytes()
}

// decodeLoadAssetRequest is the bake server's inverse of encodeLoadAssetRequest.
func decodeLoadAssetRequest(payload []byte) (typeID uint32, platform uint32, path string, extra []byte, err error) {
	r := bytes.NewReader(payload)
	if err = binary.Read(r, binary.LittleEndian, &typeID); err != nil {
		return 0, 0, "", nil, errors.Wrap(err, "LDAS: typeID")
	}
	if err = binary.Read(r, binary.LittleEndian, &platform); err != nil {
		return 0, 0, "", nil, errors.Wrap(err, "LDAS: platform")
	}
	var pathLen uint32
	if err = binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
		return 0, 0, "", nil, errors.Wrap(err, "LDAS: pathLen")
	}
	pathBytes := make([]byte, pathLen)
	if _, err = io.ReadFull(r, pathBytes); err != nil {
		return 0, 0, "", nil, errors.Wrap(err, "LDAS: path")
	}
	var extraLen uint32
	if err = binary.Read(r, binary.LittleEndian, &extraLen); err != nil {
		return 0, 0, "", nil, errors.Wrap(err, "LDAS: extraLen")
	}
	extra = make([]byte, extraLen)
	if extraLen > 0 {
		if _, err = io.ReadFull(r, extra); err != nil {
			return 0, 0, "", nil, errors.Wrap(err, "LDAS: extra")
		}
	}
	return typeID, platform, string(pathBytes), extra, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
