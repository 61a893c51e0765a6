package remote

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/kestrelengine/assetpipe/corelog"
)

// SyncServerHandler answers a command immediately (spec §4.2: "(cmd,
// incoming) -> (outgoing, error, error-desc)").
type SyncServerHandler func(cmd uint32, incoming []byte) (outgoing []byte, errFlag bool, errDesc string)

// AsyncServerHandler schedules work and replies later via the Session it is
// given (spec §4.2: "the handler instead schedules work and later invokes
// SendResponse ... or SendResponseMerge").
type AsyncServerHandler func(s *Session, cmd uint32, requestID uint64, incoming []byte)

// ClientHandler is invoked on the connection goroutine once per completed
// request (spec §4.2).
type ClientHandler func(cmd uint32, incoming []byte, user interface{}, errFlag bool, errDesc string)

// Command is a registered {fourCC, server handler, client handler, async
// flag} entry (spec §4.2, §6 Remote::RegisterCommand).
type Command struct {
	Cmd        uint32
	Async      bool
	ServerSync SyncServerHandler
	ServerAsync AsyncServerHandler
	Client     ClientHandler
}

// DisconnectCallback reports a lost connection (spec §4.2): (url, onPurpose, reason).
type DisconnectCallback func(url string, deliberate bool, reason error)

// Bus is one side (client or server) of the Remote Command Bus. A Bus can
// act as a server (Serve) accepting many connections, or as a client
// (Connect) holding exactly one.
type Bus struct {
	mu       sync.RWMutex
	commands map[uint32]Command

	// client-side state
	conn         net.Conn
	url          string
	writeMu      sync.Mutex
	nextReqID    uint64
	pending      map[uint64]pendingCall
	pendingMu    sync.Mutex
	onDisconnect DisconnectCallback
	closed       chan struct{}
}

type pendingCall struct {
	cmd  uint32
	user interface{}
	// resultCh is non-nil when ExecuteCommandSync is blocked waiting on this
	// request; otherwise the response is delivered via the registered
	// Command.Client handler.
	resultCh chan frame
}

// New creates an empty Bus with no registered commands and no connection.
func New() *Bus {
	return &Bus{
		commands: make(map[uint32]Command),
		pending:  make(map[uint64]pendingCall),
	}
}

// RegisterCommand adds cmd to the bus's dispatch table (spec §6
// Remote::RegisterCommand).
func (b *Bus) RegisterCommand(cmd Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands[cmd.Cmd] = cmd
}

func (b *Bus) command(cmd uint32) (Command, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.commands[cmd]
	return c, ok
}

// IsConnected reports whether the bus currently has a live client connection.
func (b *Bus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil
}

// Connect dials url (host:port) and starts the client read loop (spec §6
// Remote::Connect).
func (b *Bus) Connect(url string, onDisconnect DisconnectCallback) error {
	conn, err := net.Dial("tcp", url)
	if err != nil {
		return errors.Wrapf(err, "remote: dial %q", url)
	}
	b.mu.Lock()
	b.conn = conn
	b.url = url
	b.onDisconnect = onDisconnect
	b.closed = make(chan struct{})
	b.mu.Unlock()
	go b.clientReadLoop(conn)
	corelog.Infof(url, "remote bus connected")
	return nil
}

// Disconnect closes the client connection deliberately (spec §6 Remote::Disconnect).
func (b *Bus) Disconnect() {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (b *Bus) writeFrame(conn net.Conn, f frame) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return f.writeTo(conn)
}
