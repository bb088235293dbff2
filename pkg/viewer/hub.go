package viewer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skycoin/skycoin/src/util/logging"
)

const (
	clientQueueLen = 4
	writeWait      = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsMessage struct {
	kind int
	data []byte
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsMessage
}

// hub fans frames and notices out to preview clients. A client that falls
// behind loses frames rather than slowing the video loop.
type hub struct {
	log *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

func newHub(log *logging.Logger) *hub {
	return &hub{log: log, clients: make(map[*wsClient]struct{})}
}

// Frame queues a JPEG frame for every client.
func (h *hub) Frame(jpeg []byte) { h.broadcast(wsMessage{websocket.BinaryMessage, jpeg}) }

// Notice queues a JSON text message for every client.
func (h *hub) Notice(raw []byte) { h.broadcast(wsMessage{websocket.TextMessage, raw}) }

func (h *hub) broadcast(m wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
		}
	}
}

// Len returns the number of connected clients.
func (h *hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan wsMessage, clientQueueLen)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close() // nolint: errcheck
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debugf("Preview client connected: %s", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and detects disconnects.
func (h *hub) readLoop(c *wsClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writeLoop(c *wsClient) {
	defer c.conn.Close() // nolint: errcheck
	for m := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
			h.log.WithError(err).Debug("Preview client write failed")
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (h *hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
