package ws

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Handler upgrades HTTP requests into namespace connections.
type Handler struct {
	upgrader       websocket.Upgrader
	allowAll       bool
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

// NewHandler creates a handler accepting the given origins. "*" accepts any origin.
func NewHandler(allowedOrigins []string) *Handler {
	h := &Handler{
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			h.allowAll = true
			continue
		}
		h.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			h.allowedHosts[parsed.Host] = true
		}
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.CheckOrigin,
	}
	return h
}

// CheckOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin.
func (h *Handler) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowAll {
		return true
	}
	if h.allowedOrigins[origin] {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return h.allowedHosts[parsed.Host]
}

// HandleConnection upgrades the request, registers a new client in hub and
// starts its pumps. The returned client is already registered.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, hub *Hub) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	client := NewClient(hub, conn, uuid.NewString())
	hub.Register(client)
	log.Printf("[%s] client connected: %s (%s)", hub.Name(), client.ID(), r.RemoteAddr)

	go h.writePump(client)
	go h.readPump(client, hub)

	return client, nil
}

// readPump dispatches inbound frames to the hub one at a time, so events of
// a single connection are handled in arrival order.
func (h *Handler) readPump(client *Client, hub *Hub) {
	defer func() {
		hub.Unregister(client)
		client.Conn().Close()
		log.Printf("[%s] client disconnected: %s", hub.Name(), client.ID())
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[%s] websocket error: %v", hub.Name(), err)
			}
			break
		}

		env, err := DecodeFrame(message)
		if err != nil {
			log.Printf("[%s] %s: %v", hub.Name(), client.ID(), err)
			continue
		}

		hub.HandleMessage(client, env)
	}
}

// writePump drains the client's queue onto the socket. Once the queue is
// closed it sends a close frame, which is how a forced termination ends.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				client.Conn().WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			// One event per frame so the browser can JSON.parse each message.
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
