// Package liveview implements the optional "-live" websocket push named by
// SPEC_FULL §3/§4: every IntervalRow the stats sampler emits is mirrored to
// connected websocket clients as a JSON text frame, alongside the normal
// stdout reporting. Grounded on the teacher's internal/control websocket
// hub (ping/pong keepalive, per-client send queue).
package liveview

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nimblewing/flowgen/internal/logging"
	"github.com/nimblewing/flowgen/internal/stats"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
	clientSendBuf = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Broadcaster runs an HTTP server with a single "/" websocket endpoint and
// fans every pushed IntervalRow out to all connected clients.
type Broadcaster struct {
	Logger logging.Logger

	// Addr is the actual bound address, populated after Start returns.
	Addr string

	mu      sync.Mutex
	clients map[*client]struct{}
	server  *http.Server
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewBroadcaster constructs a Broadcaster; it does not bind or listen until
// Start is called with an address.
func NewBroadcaster(logger logging.Logger) *Broadcaster {
	return &Broadcaster{
		Logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Start begins serving the websocket endpoint on addr in the background.
// It returns once the listener is bound.
func (b *Broadcaster) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", b.handleWS)
	b.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	b.Addr = ln.Addr().String()
	go func() {
		if err := b.server.Serve(ln); err != nil && b.Logger != nil {
			b.Logger.Info("liveview: server stopped", "err", err)
		}
	}()
	return nil
}

// Push mirrors one IntervalRow to every connected client as a JSON frame.
func (b *Broadcaster) Push(row stats.IntervalRow) {
	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			// slow consumer, drop the frame rather than block the run
		}
	}
}

// Close shuts down the listener and disconnects all clients.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	for c := range b.clients {
		close(c.send)
		delete(b.clients, c)
		_ = c.conn.Close()
	}
	b.mu.Unlock()
	if b.server == nil {
		return nil
	}
	return b.server.Close()
}

func (b *Broadcaster) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientSendBuf)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go b.readPump(c)
	go b.writePump(c)
}

// readPump discards any client-sent frames but keeps the connection alive
// until the peer closes it, detaching the client on error.
func (b *Broadcaster) readPump(c *client) {
	defer b.detach(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer b.detach(c)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (b *Broadcaster) detach(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		_ = c.conn.Close()
	}
	b.mu.Unlock()
}
