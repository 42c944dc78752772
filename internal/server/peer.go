package server

import (
	"net"
	"sync"

	"github.com/emberkv/ember/internal/resp"
)

// Peer is the connection handle for a connected client. It wraps the
// socket behind a buffered encoder and a mutex, so the connection's own
// command loop and pub/sub fan-outs from other connections can write to it
// safely. The channel registry stores Peers, never raw sockets.
type Peer struct {
	conn net.Conn
	enc  *resp.Encoder
	mu   sync.Mutex
}

// NewPeer initializes a new client peer from a network connection
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		conn: conn,
		enc:  resp.NewEncoder(conn),
	}
}

// Send buffers one encoded reply. The command loop flushes once it has
// drained every pipelined request, keeping the replies in order and in as
// few socket writes as possible.
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Write(v)
}

// WritePayload writes pre-serialized protocol bytes and flushes them
// immediately. This is the pub/sub delivery path: the receiving connection
// is parked in a read, so nothing else would flush its buffer.
func (p *Peer) WritePayload(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.WriteRaw(b); err != nil {
		return err
	}
	return p.enc.Flush()
}

// Flush sends all buffered replies to the client
func (p *Peer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Flush()
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}
