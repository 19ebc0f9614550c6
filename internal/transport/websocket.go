// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"visualizer/internal/log"
	"visualizer/internal/observe"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
	writeWait       = time.Second
	maxInboundSize  = 64 << 10
)

type outbound struct {
	event string
	pm    *websocket.PreparedMessage
}

type client struct {
	conn *websocket.Conn
	send chan *websocket.PreparedMessage
}

// WebSocketTransport implements Transport as a WebSocket hub. Messages are
// encoded once and fanned out to every client; a full queue drops the
// message instead of blocking the sender.
type WebSocketTransport struct {
	addr     string
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	metrics  *observe.Metrics

	mu          sync.Mutex
	clients     map[*client]struct{}
	sticky      map[string]*websocket.PreparedMessage
	stickyOrder []string
	handlers    map[string]Handler

	broadcast chan outbound
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	serverMu sync.Mutex
	server   *http.Server
}

// NewWebSocketTransport creates a hub serving /ws on addr. The HTTP server
// starts with ListenAndServe; Mux exposes the router for extra routes.
func NewWebSocketTransport(addr string, metrics *observe.Metrics) *WebSocketTransport {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local UI, any origin
			},
		},
		mux:       http.NewServeMux(),
		metrics:   metrics,
		clients:   make(map[*client]struct{}),
		sticky:    make(map[string]*websocket.PreparedMessage),
		handlers:  make(map[string]Handler),
		broadcast: make(chan outbound, broadcastBuffer),
		done:      make(chan struct{}),
	}
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)

	go wst.handleBroadcasts()
	return wst
}

// Mux returns the router the hub is mounted on.
func (wst *WebSocketTransport) Mux() *http.ServeMux {
	return wst.mux
}

// OnMessage registers h for inbound events named event.
func (wst *WebSocketTransport) OnMessage(event string, h Handler) {
	wst.mu.Lock()
	wst.handlers[event] = h
	wst.mu.Unlock()
}

// ListenAndServe serves HTTP until ctx is cancelled or Close is called.
func (wst *WebSocketTransport) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", wst.addr, err)
	}

	srv := &http.Server{
		Handler:           wst.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	wst.serverMu.Lock()
	wst.server = srv
	wst.serverMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-wst.done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("WebSocketTransport: Serving on http://%s (ws path /ws)", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Send queues msg for every client. It never blocks; if the queue is full
// the message is dropped and counted.
func (wst *WebSocketTransport) Send(msg Message) error {
	if wst.closed.Load() {
		return ErrUnavailable
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event, err)
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", msg.Event, err)
	}

	if msg.Sticky {
		wst.mu.Lock()
		if _, ok := wst.sticky[msg.Event]; !ok {
			wst.stickyOrder = append(wst.stickyOrder, msg.Event)
		}
		wst.sticky[msg.Event] = pm
		wst.mu.Unlock()
	}

	select {
	case wst.broadcast <- outbound{event: msg.Event, pm: pm}:
	default:
		wst.metrics.RecordDrop(context.Background(), msg.Event)
	}
	return nil
}

// Available reports whether Send can still deliver.
func (wst *WebSocketTransport) Available() bool {
	return !wst.closed.Load()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.mu.Lock()
	defer wst.mu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades the connection, replays sticky messages and
// starts the client's reader and writer.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if wst.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxInboundSize)

	c := &client{conn: conn, send: make(chan *websocket.PreparedMessage, clientBuffer)}

	wst.mu.Lock()
	for _, event := range wst.stickyOrder {
		c.send <- wst.sticky[event]
	}
	wst.clients[c] = struct{}{}
	total := len(wst.clients)
	wst.mu.Unlock()

	wst.metrics.WSClients.Add(context.Background(), 1)
	log.Infof("WebSocketTransport: Client connected from %s, total: %d", r.RemoteAddr, total)

	go wst.writePump(c)
	go wst.readPump(c)
}

func (wst *WebSocketTransport) writePump(c *client) {
	for pm := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WritePreparedMessage(pm); err != nil {
			log.Debugf("WebSocketTransport: Error sending to client: %v", err)
			wst.removeClient(c)
			c.conn.Close()
			return
		}
	}
	// send was closed by removeClient.
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
	c.conn.Close()
}

func (wst *WebSocketTransport) readPump(c *client) {
	defer wst.removeClient(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Warnf("WebSocketTransport: Malformed inbound message: %v", err)
			continue
		}
		wst.mu.Lock()
		h := wst.handlers[in.Event]
		wst.mu.Unlock()
		if h == nil {
			log.Debugf("WebSocketTransport: No handler for inbound event %q", in.Event)
			continue
		}
		if err := h(in.Payload); err != nil {
			log.Warnf("WebSocketTransport: %s failed: %v", in.Event, err)
		}
	}
}

// removeClient unregisters c once; its writer drains and closes the socket.
func (wst *WebSocketTransport) removeClient(c *client) {
	wst.mu.Lock()
	if _, ok := wst.clients[c]; !ok {
		wst.mu.Unlock()
		return
	}
	delete(wst.clients, c)
	close(c.send)
	total := len(wst.clients)
	wst.mu.Unlock()

	c.conn.SetReadDeadline(time.Now())
	wst.metrics.WSClients.Add(context.Background(), -1)
	log.Infof("WebSocketTransport: Client disconnected, total: %d", total)
}

// handleBroadcasts fans queued messages out to client queues.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case out := <-wst.broadcast:
			wst.mu.Lock()
			for c := range wst.clients {
				select {
				case c.send <- out.pm:
				default:
					wst.metrics.RecordDrop(context.Background(), out.event)
				}
			}
			wst.mu.Unlock()
		}
	}
}

// Close disconnects every client and stops the server. Send returns
// ErrUnavailable afterwards.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Debugf("WebSocketTransport: Closing")
		wst.closed.Store(true)
		close(wst.done)

		wst.mu.Lock()
		clients := make([]*client, 0, len(wst.clients))
		for c := range wst.clients {
			clients = append(clients, c)
		}
		wst.mu.Unlock()
		for _, c := range clients {
			wst.removeClient(c)
		}

		wst.serverMu.Lock()
		srv := wst.server
		wst.serverMu.Unlock()
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
