package broadcast

import (
	"encoding/json"
	"sync"

	"chthabserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// outboxSize is how many frames a slow socket may fall behind before frames are dropped.
const outboxSize = 64

// Client is one live websocket connection.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Limiter *rate.Limiter

	send chan []byte
}

func NewClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      id,
		Conn:    conn,
		Limiter: limiter,
		send:    make(chan []byte, outboxSize),
	}
}

// Outbox is closed once the client is unregistered.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// Hub tracks live clients and room topics. Every method is non-blocking so the
// session engine may call it while holding a room lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[string]map[string]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]struct{}),
		logger:  logger,
	}
}

// Register makes c the live client for its ID. A previous client with the same ID
// is closed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	prev := h.clients[c.ID]
	h.clients[c.ID] = c
	if prev != nil {
		close(prev.send)
	}
	h.mu.Unlock()

	if prev != nil {
		h.logger.Info("Client replaced", zap.String("connectionID", c.ID))
		closeConn(prev)
	}
}

// Unregister removes c if it is still the live client for its ID and reports
// whether it was.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.ID] != c {
		return false
	}
	delete(h.clients, c.ID)
	close(c.send)
	return true
}

// Connected reports whether a live client exists for connectionID.
func (h *Hub) Connected(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// ClientCount returns the number of live clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Subscribe(topic, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[string]struct{})
		h.topics[topic] = subs
	}
	subs[connectionID] = struct{}{}
}

func (h *Hub) Unsubscribe(topic, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[topic]
	delete(subs, connectionID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

func (h *Hub) DropTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, topic)
}

// Subscribers returns the connection IDs subscribed to topic.
func (h *Hub) Subscribers(topic string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.topics[topic]))
	for id := range h.topics[topic] {
		ids = append(ids, id)
	}
	return ids
}

// Publish encodes msg once and queues it for every subscriber of topic.
func (h *Hub) Publish(topic string, msg models.Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.topics[topic] {
		if c, ok := h.clients[id]; ok {
			h.enqueue(c, frame, msg.Type)
		}
	}
}

// Send queues msg for a single connection. Unknown connections are ignored.
func (h *Hub) Send(connectionID string, msg models.Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connectionID]; ok {
		h.enqueue(c, frame, msg.Type)
	}
}

// enqueue must run under h.mu so the outbox cannot be closed underneath it.
func (h *Hub) enqueue(c *Client, frame []byte, msgType string) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("Outbox full, dropping message",
			zap.String("connectionID", c.ID),
			zap.String("type", msgType))
	}
}

// Evict closes the socket of connectionID. The read loop then takes the normal
// disconnect path.
func (h *Hub) Evict(connectionID string) {
	h.mu.RLock()
	c := h.clients[connectionID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.logger.Info("Client evicted", zap.String("connectionID", connectionID))
	closeConn(c)
}

func closeConn(c *Client) {
	if c.Conn != nil {
		c.Conn.Close()
	}
}
