package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
)

const defaultBacklog = 32

// Client is one live socket in a room. Frames queued on Outbound are written
// by the connection's writer goroutine; Done closes when the hub drops it.
type Client struct {
	ID       uuid.UUID
	RoomID   uuid.UUID
	UserID   uuid.UUID
	Outbound chan Frame

	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub tracks the sockets connected to this instance, keyed room then user.
// A user holds at most one socket per room; a newer one replaces the older.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]map[uuid.UUID]*Client
	backlog int
	metrics *metrics.MarketplaceMetrics
	logg    *logger.Logger
}

func NewHub(backlog int, m *metrics.MarketplaceMetrics, logg *logger.Logger) *Hub {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Hub{
		rooms:   make(map[uuid.UUID]map[uuid.UUID]*Client),
		backlog: backlog,
		metrics: m,
		logg:    logg,
	}
}

// Register adds a socket for userID in roomID and returns its client handle.
func (h *Hub) Register(roomID, userID uuid.UUID) *Client {
	client := &Client{
		ID:       uuid.New(),
		RoomID:   roomID,
		UserID:   userID,
		Outbound: make(chan Frame, h.backlog),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	users, ok := h.rooms[roomID]
	if !ok {
		users = make(map[uuid.UUID]*Client)
		h.rooms[roomID] = users
	}
	previous := users[userID]
	users[userID] = client
	h.mu.Unlock()

	if previous != nil {
		previous.close()
	} else {
		h.metrics.WSConnected(1)
	}
	return client
}

// Unregister removes client if it is still the registered socket for its
// user. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}
	h.mu.Lock()
	removed := h.removeLocked(client)
	h.mu.Unlock()

	client.close()
	if removed {
		h.metrics.WSConnected(-1)
	}
}

func (h *Hub) removeLocked(client *Client) bool {
	users, ok := h.rooms[client.RoomID]
	if !ok || users[client.UserID] != client {
		return false
	}
	delete(users, client.UserID)
	if len(users) == 0 {
		delete(h.rooms, client.RoomID)
	}
	return true
}

// Broadcast queues frame for every socket in roomID, the sender's included. A
// socket whose queue is full is evicted; the others still receive the frame.
func (h *Hub) Broadcast(roomID uuid.UUID, frame Frame) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for _, client := range h.rooms[roomID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		select {
		case <-client.done:
			continue
		default:
		}
		select {
		case client.Outbound <- frame:
			delivered++
		default:
			if h.logg != nil {
				ctx := h.logg.WithRoomID(context.Background(), roomID.String())
				ctx = h.logg.WithUserID(ctx, client.UserID.String())
				h.logg.Warn(ctx, "chat.ws.evicted_slow_client")
			}
			h.Unregister(client)
		}
	}
	return delivered
}

// Connected reports how many sockets are registered for roomID.
func (h *Hub) Connected(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// HasRoom reports whether any socket on this instance is in roomID.
func (h *Hub) HasRoom(roomID uuid.UUID) bool {
	return h.Connected(roomID) > 0
}

// Close drops every socket.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, users := range h.rooms {
		for _, client := range users {
			all = append(all, client)
		}
	}
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
	h.mu.Unlock()

	for _, client := range all {
		client.close()
	}
	h.metrics.WSConnected(-len(all))
}
