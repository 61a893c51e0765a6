package remote

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrelengine/assetpipe/vfs"
)

// VFSClient adapts a connected Bus into a vfs.RemoteClient (spec §4.1's
// "forwards the command via the Remote Bus" for Remote mounts), encoding the
// FRD0/FWT0/DMON payloads defined by spec §6.
type VFSClient struct {
	bus *Bus
}

// NewVFSClient wraps bus so it can be passed to vfs.New.
func NewVFSClient(bus *Bus) *VFSClient {
	return &VFSClient{bus: bus}
}

func (c *VFSClient) IsConnected() bool { return c.bus.IsConnected() }

func putString(dst []byte, s string) []byte {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	dst = append(dst, n[:]...)
	return append(dst, s...)
}

func takeString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, errors.New("remote: truncated string length")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, errors.New("remote: truncated string body")
	}
	return string(b[:n]), b[n:], nil
}

// ReadFile issues an FRD0 request (spec §6).
func (c *VFSClient) ReadFile(path string, flags vfs.Flags) (vfs.Blob, error) {
	payload := make([]byte, 0, 8+len(path))
	var fl [4]byte
	binary.LittleEndian.PutUint32(fl[:], uint32(flags))
	payload = append(payload, fl[:]...)
	payload = putString(payload, path)

	out, err := c.bus.ExecuteCommandSync(CmdReadFile, payload)
	if err != nil {
		return vfs.Blob{}, err
	}
	return vfs.NewBlob(out), nil
}

// WriteFile issues an FWT0 request (spec §6).
func (c *VFSClient) WriteFile(path string, blob vfs.Blob, flags vfs.Flags) (int, error) {
	payload := make([]byte, 0, 8+len(path)+len(blob.Data))
	var fl [4]byte
	binary.LittleEndian.PutUint32(fl[:], uint32(flags))
	payload = append(payload, fl[:]...)
	payload = putString(payload, path)
	payload = append(payload, blob.Data...)

	out, err := c.bus.ExecuteCommandSync(CmdWriteFile, payload)
	if err != nil {
		return 0, err
	}
	if len(out) < 4 {
		return 0, errors.New("remote: malformed FWT0 response")
	}
	return int(binary.LittleEndian.Uint32(out)), nil
}

// MonitorChanges issues one DMON poll (spec §4.1, §6): the server answers
// with the newline-joined list of paths that changed under alias since the
// last poll.
func (c *VFSClient) MonitorChanges(alias string) ([]string, error) {
	payload := putString(nil, alias)
	out, err := c.bus.ExecuteCommandSync(CmdMonitorChanges, payload)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return strings.Split(string(out), "\n"), nil
}

// RegisterVFSHandlers installs the server-side FRD0/FWT0/DMON handlers that
// service a remote peer's VFS requests against v (spec §4.1's server-side
// contract). Used by a process hosting the asset source tree for a remote
// runtime peer.
func RegisterVFSHandlers(bus *Bus, v *vfs.VFS) {
	bus.RegisterCommand(Command{
		Cmd: CmdReadFile,
		ServerSync: func(_ uint32, incoming []byte) ([]byte, bool, string) {
			if len(incoming) < 4 {
				return nil, true, "truncated FRD0 request"
			}
			flags := vfs.Flags(binary.LittleEndian.Uint32(incoming[:4]))
			path, _, err := takeString(incoming[4:])
			if err != nil {
				return nil, true, err.Error()
			}
			blob := v.Read(path, flags)
			if !blob.IsValid() {
				return nil, true, "read failed: " + path
			}
			return blob.Data, false, ""
		},
	})

	bus.RegisterCommand(Command{
		Cmd: CmdWriteFile,
		ServerSync: func(_ uint32, incoming []byte) ([]byte, bool, string) {
			if len(incoming) < 4 {
				return nil, true, "truncated FWT0 request"
			}
			flags := vfs.Flags(binary.LittleEndian.Uint32(incoming[:4]))
			path, rest, err := takeString(incoming[4:])
			if err != nil {
				return nil, true, err.Error()
			}
			n := v.Write(path, vfs.NewBlob(rest), flags)
			out := make([]byte, 4)
			binary.LittleEndian.PutUint32(out, uint32(n))
			return out, false, ""
		},
	})

	bus.RegisterCommand(Command{
		Cmd: CmdMonitorChanges,
		ServerSync: func(_ uint32, incoming []byte) ([]byte, bool, string) {
			alias, _, err := takeString(incoming)
			if err != nil {
				return nil, true, err.Error()
			}
			changed := v.DrainPendingChanges(alias)
			return []byte(strings.Join(changed, "\n")), false, ""
		},
	})
}
