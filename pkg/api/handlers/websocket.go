package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goclaw/taskflow/pkg/api/events"
	"github.com/goclaw/taskflow/pkg/logger"
)

const (
	defaultWSMaxConnections = 100
	defaultPingInterval     = 30 * time.Second
	defaultPongTimeout      = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultSendBuffer       = 32
	maxClientMessage        = 64 << 10
)

// WebSocketConfig configures the event stream endpoint.
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxConnections int
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// clientMessage changes what a client receives.
//
//	{"type":"subscribe","workflowId":"default-kanban"}
//	{"type":"subscribe","entityId":"task-7","eventTypes":["transition.completed"]}
//	{"type":"unsubscribe","entityId":"task-7"}
type clientMessage struct {
	Type       string   `json:"type"`
	WorkflowID string   `json:"workflowId,omitempty"`
	EntityID   string   `json:"entityId,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
}

// ackMessage answers every client message.
type ackMessage struct {
	Type       string   `json:"type"`
	Action     string   `json:"action,omitempty"`
	WorkflowID string   `json:"workflowId,omitempty"`
	EntityID   string   `json:"entityId,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// filter selects events for one client. Workflow and entity scopes are
// alternatives: an event matching either is delivered, and no scope at all
// means every event. Event types narrow whatever the scopes select.
type filter struct {
	mu        sync.RWMutex
	workflows map[string]struct{}
	entities  map[string]struct{}
	types     map[string]struct{}
}

func newFilter() *filter {
	return &filter{
		workflows: map[string]struct{}{},
		entities:  map[string]struct{}{},
		types:     map[string]struct{}{},
	}
}

func (f *filter) apply(msg clientMessage, add bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := func(m map[string]struct{}, key string) {
		if key = strings.TrimSpace(key); key == "" {
			return
		}
		if add {
			m[key] = struct{}{}
		} else {
			delete(m, key)
		}
	}
	set(f.workflows, msg.WorkflowID)
	set(f.entities, msg.EntityID)
	for _, t := range msg.EventTypes {
		set(f.types, t)
	}
}

func (f *filter) matches(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.types) > 0 {
		if _, ok := f.types[event.Type]; !ok {
			return false
		}
	}
	if len(f.workflows) == 0 && len(f.entities) == 0 {
		return true
	}
	if _, ok := f.workflows[event.WorkflowID]; ok && event.WorkflowID != "" {
		return true
	}
	_, ok := f.entities[event.EntityID]
	return ok && event.EntityID != ""
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	filter *filter

	mu     sync.Mutex
	closed bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, defaultSendBuffer),
		filter: newFilter(),
	}
}

// enqueue queues payload without blocking. It reports false when the
// buffer is full or the client is closed.
func (c *wsClient) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// hub tracks connected clients. A client whose send buffer is full is
// dropped instead of blocking delivery to the others.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	limit   int
}

func newHub(limit int) *hub {
	if limit <= 0 {
		limit = defaultWSMaxConnections
	}
	return &hub{clients: map[*wsClient]struct{}{}, limit: limit}
}

func (h *hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= h.limit {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *hub) full() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) >= h.limit
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) deliver(event events.Event, payload []byte) (dropped int) {
	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.filter.matches(event) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			h.remove(c)
			dropped++
		}
	}
	return dropped
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = map[*wsClient]struct{}{}
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

// WebSocketHandler streams lifecycle events on /api/v1/events/ws.
type WebSocketHandler struct {
	log          logger.Logger
	hub          *hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
}

// NewWebSocketHandler creates a websocket handler. Browser clients must come
// from the request's own host or one of cfg.AllowedOrigins.
func NewWebSocketHandler(log logger.Logger, cfg WebSocketConfig) *WebSocketHandler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}

	origins := append([]string(nil), cfg.AllowedOrigins...)
	return &WebSocketHandler{
		log:          log,
		hub:          newHub(cfg.MaxConnections),
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		writeTimeout: defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originAllowed(r, origins) },
		},
	}
}

// ServeHTTP upgrades the connection and runs it until the client leaves.
//
//	@Summary		Stream lifecycle events
//	@Description	Upgrades to a websocket that streams transition, workflow, validation and action events.
//	@Tags			events
//	@Success		101
//	@Failure		400	{string}	string	"websocket upgrade required"
//	@Failure		503	{string}	string	"connection limit reached"
//	@Router			/api/v1/events/ws [get]
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if h.hub.full() {
		http.Error(w, "websocket connection limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn)
	if !h.hub.add(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many websocket connections"),
			time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return
	}
	h.log.Debug("websocket client connected", "remote", r.RemoteAddr, "clients", h.hub.count())

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *WebSocketHandler) readLoop(c *wsClient) {
	defer h.hub.remove(c)

	wait := h.pingInterval + h.pongTimeout
	c.conn.SetReadLimit(maxClientMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		ack := h.handleClientMessage(c, data)
		if payload, err := json.Marshal(ack); err == nil {
			c.enqueue(payload)
		}
	}
}

func (h *WebSocketHandler) writeLoop(c *wsClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.hub.remove(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			deadline := time.Now().Add(h.writeTimeout)
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}
			_ = c.conn.SetWriteDeadline(deadline)
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage updates the client's filter and returns the reply.
func (h *WebSocketHandler) handleClientMessage(c *wsClient, raw []byte) ackMessage {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ackMessage{Type: "error", Error: "invalid message: " + err.Error()}
	}

	action := strings.ToLower(strings.TrimSpace(msg.Type))
	switch action {
	case "subscribe", "unsubscribe":
	default:
		return ackMessage{Type: "error", Action: msg.Type, Error: "unknown message type"}
	}
	if strings.TrimSpace(msg.WorkflowID) == "" && strings.TrimSpace(msg.EntityID) == "" && len(msg.EventTypes) == 0 {
		return ackMessage{Type: "error", Action: action, Error: "workflowId, entityId or eventTypes is required"}
	}

	c.filter.apply(msg, action == "subscribe")
	return ackMessage{
		Type:       "ack",
		Action:     action,
		WorkflowID: msg.WorkflowID,
		EntityID:   msg.EntityID,
		EventTypes: msg.EventTypes,
	}
}

// Broadcast sends event to every client whose filter matches it.
func (h *WebSocketHandler) Broadcast(event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if dropped := h.hub.deliver(event, payload); dropped > 0 {
		h.log.Warn("dropped slow websocket clients", "count", dropped, "type", event.Type)
	}
	return nil
}

// Forward is an events.Broadcaster sink; encoding failures are logged.
func (h *WebSocketHandler) Forward(event events.Event) {
	if err := h.Broadcast(event); err != nil {
		h.log.Warn("websocket broadcast failed", "type", event.Type, "error", err)
	}
}

// Connections returns the number of connected clients.
func (h *WebSocketHandler) Connections() int {
	return h.hub.count()
}

// Close disconnects every client.
func (h *WebSocketHandler) Close() {
	h.hub.closeAll()
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a = strings.TrimSpace(a); a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
