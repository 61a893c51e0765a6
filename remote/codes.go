// Package remote implements the Remote Command Bus (spec §4.2): a
// connection-oriented, ordered request/response channel over which both the
// VFS (file read/write, change monitoring) and the asset manager (bake
// offload) delegate work to a peer process.
package remote

// FourCC packs a 4-character command code into a uint32, matching spec §6's
// command codes ('LDAS', 'FRD0', 'FWT0', 'DMON', 'CSHD').
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	// CmdLoadAsset is "LDAS": client -> server, async server response (spec §6, §4.7 Bake Server Pipeline).
	CmdLoadAsset = FourCC('L', 'D', 'A', 'S')
	// CmdReadFile is "FRD0": VFS read (spec §6, §4.1).
	CmdReadFile = FourCC('F', 'R', 'D', '0')
	// CmdWriteFile is "FWT0": VFS write (spec §6, §4.1).
	CmdWriteFile = FourCC('F', 'W', 'T', '0')
	// CmdMonitorChanges is "DMON": client polls server each 1s (spec §6, §4.1).
	CmdMonitorChanges = FourCC('D', 'M', 'O', 'N')
	// CmdShaderCompile is "CSHD": legacy shader-baker path (spec §6).
	CmdShaderCompile = FourCC('C', 'S', 'H', 'D')
)

// MaxErrorDescLen is the wire limit on a response's short error description
// (spec §4.2: "an optional short error-description (<=1024 bytes)").
const MaxErrorDescLen = 1024
