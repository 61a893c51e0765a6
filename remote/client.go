package remote

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kestrelengine/assetpipe/corelog"
)

// ExecuteCommand sends cmd to the connected peer and returns the requestID
// cookie immediately (spec §4.2, §6 Remote::ExecuteCommand). The registered
// Command.Client handler is invoked on the read-loop goroutine once the
// response arrives; user is handed back to that callback unchanged.
func (b *Bus) ExecuteCommand(cmd uint32, payload []byte, user interface{}) (uint64, error) {
	return b.send(cmd, payload, pendingCall{cmd: cmd, user: user})
}

func (b *Bus) send(cmd uint32, payload []byte, call pendingCall) (uint64, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return 0, errors.New("remote: not connected")
	}

	reqID := atomic.AddUint64(&b.nextReqID, 1)
	b.pendingMu.Lock()
	b.pending[reqID] = call
	b.pendingMu.Unlock()

	f := frame{cmd: cmd, requestID: reqID, payload: payload}
	if err := b.writeFrame(conn, f); err != nil {
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
		return 0, errors.Wrap(err, "remote: write request")
	}
	return reqID, nil
}

// ExecuteCommandSync is a blocking convenience wrapper used by callers (the
// VFS remote mounts, in particular) that have no use for the async
// request/response split and just want a synchronous round trip.
func (b *Bus) ExecuteCommandSync(cmd uint32, payload []byte) ([]byte, error) {
	resultCh := make(chan frame, 1)
	if _, err := b.send(cmd, payload, pendingCall{cmd: cmd, resultCh: resultCh}); err != nil {
		return nil, err
	}
	f := <-resultCh
	if f.errorFlag {
		return nil, errors.Errorf("remote: %s", f.errorDesc)
	}
	return f.payload, nil
}

func (b *Bus) clientReadLoop(conn net.Conn) {
	var lastErr error
	for {
		f, err := readFrame(conn)
		if err != nil {
			lastErr = err
			break
		}
		if !f.isResponse {
			continue
		}
		b.pendingMu.Lock()
		call, ok := b.pending[f.requestID]
		if ok {
			delete(b.pending, f.requestID)
		}
		b.pendingMu.Unlock()
		if !ok {
			corelog.Errorf("remote", "response for unknown request id %d", f.requestID)
			continue
		}
		if call.resultCh != nil {
			call.resultCh <- f
			continue
		}
		cmdDef, _ := b.command(call.cmd)
		if cmdDef.Client != nil {
			cmdDef.Client(f.cmd, f.payload, call.user, f.errorFlag, f.errorDesc)
		}
	}

	b.pendingMu.Lock()
	dropped := b.pending
	b.pending = make(map[uint64]pendingCall)
	b.pendingMu.Unlock()
	for id, call := range dropped {
		f := frame{cmd: call.cmd, requestID: id, isResponse: true, errorFlag: true, errorDesc: "connection closed"}
		if call.resultCh != nil {
			call.resultCh <- f
			continue
		}
		if cmdDef, ok := b.command(call.cmd); ok && cmdDef.Client != nil {
			cmdDef.Client(f.cmd, nil, call.user, true, f.errorDesc)
		}
	}

	b.mu.Lock()
	wasDeliberate := b.conn == nil
	b.conn = nil
	cb := b.onDisconnect
	url := b.url
	b.mu.Unlock()

	if cb != nil {
		cb(url, wasDeliberate, lastErr)
	}
}
