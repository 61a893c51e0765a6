package remote

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// frame is the wire representation of one request or response (spec §4.2):
// "Payload framing carries: command code, request id, payload bytes, and, on
// response, an error flag with an optional short error-description."
//
// Wire layout, little-endian throughout:
//
//	u32 cmd
//	u64 requestID   (the opaque correlation cookie, spec §4.2)
//	u8  isResponse
//	u8  errorFlag
//	u16 errorDescLen
//	[]byte errorDesc
//	u32 payloadLen
//	[]byte payload
type frame struct {
	cmd        uint32
	requestID  uint64
	isResponse bool
	errorFlag  bool
	errorDesc  string
	payload    []byte
}

func (f frame) writeTo(w io.Writer) error {
	if len(f.errorDesc) > MaxErrorDescLen {
		f.errorDesc = f.errorDesc[:MaxErrorDescLen]
	}
	var hdr [4 + 8 + 1 + 1 + 2]byte
	binary.LittleEndian.PutUint32(hdr[0:4], f.cmd)
	binary.LittleEndian.PutUint64(hdr[4:12], f.requestID)
	if f.isResponse {
		hdr[12] = 1
	}
	if f.errorFlag {
		hdr[13] = 1
	}
	binary.LittleEndian.PutUint16(hdr[14:16], uint16(len(f.errorDesc)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(f.errorDesc) > 0 {
		if _, err := io.WriteString(w, f.errorDesc); err != nil {
			return err
		}
	}
	var plen [4]byte
	binary.LittleEndian.PutUint32(plen[:], uint32(len(f.payload)))
	if _, err := w.Write(plen[:]); err != nil {
		return err
	}
	if len(f.payload) > 0 {
		if _, err := w.Write(f.payload); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) (frame, error) {
	var hdr [4 + 8 + 1 + 1 + 2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return frame{}, err
	}
	f := frame{
		cmd:       binary.LittleEndian.Uint32(hdr[0:4]),
		requestID: binary.LittleEndian.Uint64(hdr[4:12]),
	}
	f.isResponse = hdr[12] != 0
	f.errorFlag = hdr[13] != 0
	descLen := binary.LittleEndian.Uint16(hdr[14:16])
	if descLen > 0 {
		desc := make([]byte, descLen)
		if _, err := io.ReadFull(r, desc); err != nil {
			return frame{}, err
		}
		f.errorDesc = string(desc)
	}
	var plen [4]byte
	if _, err := io.ReadFull(r, plen[:]); err != nil {
		return frame{}, err
	}
	n := binary.LittleEndian.Uint32(plen[:])
	const maxPayload = 512 << 20
	if n > maxPayload {
		return frame{}, errors.Errorf("remote: frame payload %d exceeds sanity limit", n)
	}
	if n > 0 {
		f.payload = make([]byte, n)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return frame{}, err
		}
	}
	return f, nil
}
