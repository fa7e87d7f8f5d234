// Package ws is the realtime fan-out layer: a hub of live connections and
// per-chat subscription groups. Delivery is best-effort and at-most-once; a
// session that is not connected or not joined to a group simply misses the
// event, and clients reconcile by re-fetching state.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/metrics"
)

// Hub tracks connected clients and which chat groups each is subscribed
// to. It implements events.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client           // socketID -> client
	groups  map[uint]map[string]*Client  // chatID -> socketID -> client
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[uint]map[string]*Client),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.SocketID] = c
	metrics.ConnectionsActive.Inc()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.SocketID]; !ok {
		return
	}
	delete(h.clients, c.SocketID)
	for chatID, members := range h.groups {
		delete(members, c.SocketID)
		if len(members) == 0 {
			delete(h.groups, chatID)
		}
	}
	metrics.ConnectionsActive.Dec()
	c.close()
}

// Join subscribes a connection to a chat group. Membership must already be
// verified by the caller; the hub does not consult the store.
func (h *Hub) Join(chatID uint, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[chatID]; !ok {
		h.groups[chatID] = make(map[string]*Client)
	}
	h.groups[chatID][c.SocketID] = c
}

// Leave unsubscribes the connection and drops the group map once its last
// member is gone, so dead chats do not accumulate.
func (h *Hub) Leave(chatID uint, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[chatID]; ok {
		delete(members, c.SocketID)
		if len(members) == 0 {
			delete(h.groups, chatID)
		}
	}
}

// ToChat delivers the event to every session joined to the chat's group.
// Encoding happens once; each client receives frames in emission order
// through its own send queue.
func (h *Hub) ToChat(chatID uint, ev events.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.Warnw("event marshal failed", "type", ev.Type, "err", err)
		return
	}
	metrics.EventsBroadcast.WithLabelValues(string(ev.Type)).Inc()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.groups[chatID] {
		c.enqueue(frame)
	}
}

// ToAll delivers the event to every connected session regardless of group.
func (h *Hub) ToAll(ev events.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.Warnw("event marshal failed", "type", ev.Type, "err", err)
		return
	}
	metrics.EventsBroadcast.WithLabelValues(string(ev.Type)).Inc()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(frame)
	}
}
