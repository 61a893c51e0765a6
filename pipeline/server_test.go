package pipeline

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/remote"
	"github.com/kestrelengine/assetpipe/typereg"
)

// TestRunServerBatchBakesQueuedRequest exercises the Bake Server Pipeline
// end to end: a real client Bus dials a real server Bus over loopback TCP,
// the server's async LDAS handler enqueues the request, and a background
// poller drives runServerBatch until the client's blocking
// ExecuteCommandSync call unblocks with the baked response.
func TestRunServerBatchBakesQueuedRequest(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "server.bin", "SRC")

	m := newTestManager(t, srcDir)
	b := &stubBaker{prefix: "SERVERBAKED:"}
	require.NoError(t, m.Registry.Register(typereg.Descriptor{TypeID: testTypeA, Name: "typea", Baker: b}))

	server := remote.New()
	m.RegisterBakeServerHandler(server)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go server.Serve(ln)

	stopPoll := make(chan struct{})
	defer close(stopPoll)
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.runServerBatch()
			case <-stopPoll:
				return
			}
		}
	}()

	client := remote.New()
	require.NoError(t, client.Connect(ln.Addr().String(), func(string, bool, error) {}))
	defer client.Disconnect()

	req := encodeLoadAssetRequest(asset.Params{TypeID: testTypeA, Path: "data/server.bin"})
	out, err := client.ExecuteCommandSync(remote.CmdLoadAsset, req)
	require.NoError(t, err)
	require.Len(t, out, 35, "response should be the 4-byte asset hash header followed by the 31-byte serialized record")

	record, err := asset.Unmarshal(out[4:])
	require.NoError(t, err)
	assert.Equal(t, "SERVERBAKED:SRC", string(record.ObjData))
	assert.EqualValues(t, 1, b.callCount())
}

// TestRunServerBatchRejectsUnregisteredType drives the same real network
// round trip but requests a type the server never registered, and asserts
// the client sees the server's error description rather than a payload.
func TestRunServerBatchRejectsUnregisteredType(t *testing.T) {
	srcDir := t.TempDir()
	writeSourceFile(t, srcDir, "orphan.bin", "O")
	m := newTestManager(t, srcDir)

	server := remote.New()
	m.RegisterBakeServerHandler(server)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go server.Serve(ln)

	stopPoll := make(chan struct{})
	defer close(stopPoll)
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.runServerBatch()
			case <-stopPoll:
				return
			}
		}
	}()

	client := remote.New()
	require.NoError(t, client.Connect(ln.Addr().String(), func(string, bool, error) {}))
	defer client.Disconnect()

	req := encodeLoadAssetRequest(asset.Params{TypeID: 0xFEED, Path: "data/orphan.bin"})
	_, err = client.ExecuteCommandSync(remote.CmdLoadAsset, req)
	assert.ErrorContains(t, err, "unregistered asset type")
}
