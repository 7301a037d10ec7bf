package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/knxtpuart/go-tpuart/internal/logger"
)

const (
	wsSendBufferSize = 256
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// WebSocketSink upgrades incoming HTTP connections to WebSocket clients
// and pushes every published telegram event to all of them as JSON.
type WebSocketSink struct {
	log logger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan TelegramEvent
}

// NewWebSocketSink returns an empty WebSocketSink. Register its
// ServeHTTP method with an http.ServeMux to accept connections.
func NewWebSocketSink(log logger.Logger) *WebSocketSink {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &WebSocketSink{
		log:     log.WithComponent("monitor.websocket"),
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers
// it as a subscriber. The connection is read-only from the client's
// perspective: the driver only ever pushes telegram events, never
// accepts bus writes over this channel.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan TelegramEvent, wsSendBufferSize)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)
}

// readPump discards client frames; it exists only to detect disconnects
// and keep the pong handler alive.
func (s *WebSocketSink) readPump(c *wsClient) {
	defer s.unregister(c)

	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WebSocketSink) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketSink) unregister(c *wsClient) {
	s.mu.Lock()
	_, existed := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if existed {
		close(c.send)
	}
}

// Publish implements Sink. It never blocks: a client whose send buffer
// is full simply misses the event.
func (s *WebSocketSink) Publish(ev TelegramEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// Close disconnects every client.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		close(c.send)
		c.conn.Close()
		delete(s.clients, c)
	}
	return nil
}
