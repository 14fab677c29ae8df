package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/secure-exam/relay/internal/model"
)

// Client represents one WebSocket connection inside a namespace.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new client with the given connection id.
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan []byte, 256),
	}
}

// Send queues a frame for the client. It reports false when the client is
// closed or its buffer overflowed, in which case the client is closed.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		// Buffer full, close the client
		c.closeLocked()
		return false
	}
}

// Close closes the client's send queue. Frames already queued are still written.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Namespace returns the name of the hub the client belongs to.
func (c *Client) Namespace() string {
	if c.hub == nil {
		return ""
	}
	return c.hub.name
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the send channel for the client.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Hub is one namespace of connections. Connections are addressed by id and
// may belong to any number of named groups.
type Hub struct {
	name    string
	clients map[string]*Client
	groups  map[string]map[string]struct{}
	mu      sync.RWMutex

	// Callbacks
	onMessage func(client *Client, env *Envelope)
	onClose   func(client *Client)
}

// NewHub creates an empty namespace.
func NewHub(name string) *Hub {
	return &Hub{
		name:    name,
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]struct{}),
	}
}

// Name returns the namespace name.
func (h *Hub) Name() string {
	return h.name
}

// SetOnMessage sets the callback for incoming events.
func (h *Hub) SetOnMessage(callback func(client *Client, env *Envelope)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = callback
}

// SetOnClose sets the callback invoked once per connection after it is unregistered.
func (h *Hub) SetOnClose(callback func(client *Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClose = callback
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.id] = client
}

// Unregister removes a client from the hub and from all of its groups.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
		h.leaveAllLocked(client.id)
	}
	onClose := h.onClose
	h.mu.Unlock()

	client.Close()

	if ok && current == client && onClose != nil {
		onClose(client)
	}
}

// Join adds a connection to a named group.
func (h *Hub) Join(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

// Leave removes a connection from a named group. Leaving a group the
// connection is not part of is a no-op.
func (h *Hub) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

func (h *Hub) leaveAllLocked(connID string) {
	for group, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// InGroup reports whether the connection is a member of group.
func (h *Hub) InGroup(connID, group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[group][connID]
	return ok
}

// GroupSize returns the number of connections in group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Emit sends an event to a single connection.
func (h *Hub) Emit(connID, event string, payload interface{}) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok || !client.Send(data) {
		return model.ErrConnectionClosed
	}
	return nil
}

// EmitGroup sends an event to every connection in group and returns how
// many connections it was queued for.
func (h *Hub) EmitGroup(group, event string, payload interface{}) int {
	data, err := Encode(event, payload)
	if err != nil {
		log.Printf("[%s] %v", h.name, err)
		return 0
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.groups[group]))
	for connID := range h.groups[group] {
		if client, ok := h.clients[connID]; ok {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.Send(data) {
			sent++
		}
	}
	return sent
}

// Disconnect forcibly terminates a connection. Frames queued before the call
// are flushed before the socket closes. It reports false for unknown ids.
func (h *Hub) Disconnect(connID string) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	client.Close()
	return true
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleMessage dispatches an inbound event to the message callback.
func (h *Hub) HandleMessage(client *Client, env *Envelope) {
	h.mu.RLock()
	callback := h.onMessage
	h.mu.RUnlock()

	if callback != nil {
		callback(client, env)
	}
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// HubManager holds the namespaces served by the process.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.RWMutex
}

// NewHubManager creates a new HubManager.
func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

// GetOrCreate returns an existing namespace or creates it.
func (m *HubManager) GetOrCreate(name string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[name]; ok {
		return hub
	}

	hub := NewHub(name)
	m.hubs[name] = hub
	return hub
}

// Get returns the namespace, or nil if not found.
func (m *HubManager) Get(name string) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[name]
}

// ClientCounts returns the connection count of every namespace.
func (m *HubManager) ClientCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(m.hubs))
	for name, hub := range m.hubs {
		counts[name] = hub.ClientCount()
	}
	return counts
}

// Close closes all namespaces.
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, hub := range m.hubs {
		hub.Close()
	}
}
