package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Peer is one connected client (candidate or viewer). Implementations must be
// comparable so they can key watcher sets and own sessions.
type Peer interface {
	// Send writes a strongly-typed event payload to the client.
	Send(v interface{}) error
}

// WSPeer wraps a gorilla websocket connection with serialized, deadline-bound
// writes. Reads stay on the handler's loop; only writes go through here
// because fan-out means multiple goroutines write to the same viewer.
type WSPeer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWSPeer wraps an upgraded connection.
func NewWSPeer(conn *websocket.Conn) *WSPeer {
	return &WSPeer{conn: conn}
}

// Send writes v as JSON with a write deadline.
func (p *WSPeer) Send(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return p.conn.WriteJSON(v)
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func (p *WSPeer) ReadJSON(v interface{}) error {
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return p.conn.ReadJSON(v)
}
