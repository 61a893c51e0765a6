package remote

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/kestrelengine/assetpipe/corelog"
)

// Session is the server-side handle for one accepted connection, passed to
// AsyncServerHandler so it can reply once its work finishes, possibly long
// after the handler itself returned (spec §4.2, §6 SendResponse).
type Session struct {
	conn    net.Conn
	writeMu sync.Mutex
	url     string
}

func (s *Session) write(f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return f.writeTo(s.conn)
}

// SendResponse answers requestID with either a payload or an error (spec §6
// Remote::SendResponse). cmd must match the request's command code.
func (s *Session) SendResponse(cmd uint32, requestID uint64, payload []byte, errDesc string) error {
	f := frame{
		cmd:        cmd,
		requestID:  requestID,
		isResponse: true,
		payload:    payload,
	}
	if errDesc != "" {
		f.errorFlag = true
		f.errorDesc = errDesc
	}
	return s.write(f)
}

// SendResponseMerge answers requestID with a payload built by concatenating
// header and body (spec §4.7 Bake Server Pipeline: the merged
// cache-header-plus-raw-blob response to LDAS), avoiding a separate copy into
// one contiguous buffer at the call site.
func (s *Session) SendResponseMerge(cmd uint32, requestID uint64, header, body []byte, errDesc string) error {
	payload := make([]byte, 0, len(header)+len(body))
	payload = append(payload, header...)
	payload = append(payload, body...)
	return s.SendResponse(cmd, requestID, payload, errDesc)
}

// Serve accepts connections on ln until it is closed, handling each on its
// own goroutine (spec §6: "a Bus used as a server accepts many peers").
func (b *Bus) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "remote: accept")
		}
		go b.serveConn(conn)
	}
}

func (b *Bus) serveConn(conn net.Conn) {
	s := &Session{conn: conn, url: conn.RemoteAddr().String()}
	defer conn.Close()
	corelog.Infof(s.url, "remote bus: peer connected")

	for {
		f, err := readFrame(conn)
		if err != nil {
			corelog.Infof(s.url, "remote bus: peer disconnected: %v", err)
			return
		}
		if f.isResponse {
			continue
		}
		cmdDef, ok := b.command(f.cmd)
		if !ok {
			_ = s.SendResponse(f.cmd, f.requestID, nil, "unregistered command")
			continue
		}
		if cmdDef.Async {
			if cmdDef.ServerAsync != nil {
				go cmdDef.ServerAsync(s, f.cmd, f.requestID, f.payload)
			}
			continue
		}
		if cmdDef.ServerSync == nil {
			_ = s.SendResponse(f.cmd, f.requestID, nil, "no server handler")
			continue
		}
		out, errFlag, errDesc := cmdDef.ServerSync(f.cmd, f.payload)
		if !errFlag {
			errDesc = ""
		}
		if err := s.SendResponse(f.cmd, f.requestID, out, errDesc); err != nil {
			corelog.Errorf(s.url, "remote bus: send response: %v", err)
			return
		}
	}
}
