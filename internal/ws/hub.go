package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/go-demo/studyroom/internal/room"
)

const eventBufferSize = 1024

// roomBroadcast represents a message to fan out to one room. relayed marks
// messages that arrived over Redis from another instance; those are never
// republished.
type roomBroadcast struct {
	RoomID  string
	Message *Message
	relayed bool
}

// redisEnvelope wraps a message on the cross-instance channel. Origin lets
// an instance skip its own publications.
type redisEnvelope struct {
	RoomID  string   `json:"room_id"`
	Origin  string   `json:"origin"`
	Message *Message `json:"message"`
}

// Hub maintains the set of active clients and fans out room events. It is
// the delivery side of the coordinators: each coordinator publishes ordered
// events into the hub, and the hub relays them to every subscribed client.
// Delivery is at-least-once; clients key chat on seq and render the rest
// idempotently.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Subscribed clients by room: roomID -> clients
	rooms map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Ordered room events awaiting fan-out
	events chan *roomBroadcast

	// Mutex for thread-safe access
	mu sync.RWMutex

	// Distinguishes this instance on the Redis channel
	instanceID string

	registry *room.Registry

	// Redis for Pub/Sub (horizontal scaling)
	redis *redis.Client

	logger *zap.Logger
}

// NewHub creates a new Hub
func NewHub(registry *room.Registry, redisClient *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *roomBroadcast, eventBufferSize),
		instanceID: uuid.New().String(),
		registry:   registry,
		redis:      redisClient,
		logger:     logger,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	// Start Redis subscriber in goroutine
	go h.subscribeRedis()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case rb := <-h.events:
			h.broadcastToRoom(rb)
		}
	}
}

// Publish implements room.EventSink. It is called by coordinators while
// holding the room lock, so it must never block: it only enqueues onto the
// event buffer, and the Run loop does the fan-out and the Redis round-trip.
// If the buffer is full the event is dropped and subscribers recover from
// the next snapshot.
func (h *Hub) Publish(roomID string, evt *room.Event) {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		h.logger.Error("Failed to marshal room event",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}

	msg := &Message{
		Type:      MessageType(evt.Type),
		Payload:   payloadBytes,
		Timestamp: evt.Timestamp,
	}

	select {
	case h.events <- &roomBroadcast{RoomID: roomID, Message: msg}:
	default:
		h.logger.Warn("Event buffer full, dropping room event",
			zap.String("room_id", roomID),
			zap.String("type", string(evt.Type)),
		)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("user_id", client.userID),
		zap.String("username", client.username),
		zap.Int("total_clients", total),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client)

	subscribed := make([]string, 0, len(client.rooms))
	for roomID := range client.rooms {
		subscribed = append(subscribed, roomID)
		if roomClients, ok := h.rooms[roomID]; ok {
			delete(roomClients, client)
			if len(roomClients) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.mu.Unlock()

	// Deactivate presence in every room this connection was in
	for _, roomID := range subscribed {
		if coord, err := h.registry.Get(roomID); err == nil {
			coord.Leave(client.userID)
		}
	}

	client.Close()

	h.logger.Info("Client disconnected",
		zap.String("user_id", client.userID),
		zap.String("username", client.username),
	)
}

// JoinRoom admits a client into a room and subscribes it to the room's
// events. The client is subscribed before admission so no event emitted
// after the snapshot is missed; events racing the snapshot may duplicate
// its contents, which clients reconcile by seq.
func (h *Hub) JoinRoom(client *Client, payload JoinRoomPayload, requestID string) {
	coord, err := h.registry.Get(payload.RoomID)
	if err != nil {
		client.sendError(404, "自習室不存在")
		return
	}

	h.mu.Lock()
	if h.rooms[payload.RoomID] == nil {
		h.rooms[payload.RoomID] = make(map[*Client]bool)
	}
	h.rooms[payload.RoomID][client] = true
	h.mu.Unlock()

	client.JoinRoom(payload.RoomID)

	snap, err := coord.Join(client.userID, client.username, payload.AccessSecret)
	if err != nil {
		h.removeFromRoom(client, payload.RoomID)
		client.LeaveRoom(payload.RoomID)
		client.sendRoomError(err)
		return
	}

	snapshotMsg, _ := NewMessage(MessageTypeSnapshot, snap)
	snapshotMsg.RequestID = requestID
	client.SendMessage(snapshotMsg)

	h.logger.Debug("Client joined room",
		zap.String("user_id", client.userID),
		zap.String("room_id", payload.RoomID),
	)
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.removeFromRoom(client, roomID)
	client.LeaveRoom(roomID)

	if coord, err := h.registry.Get(roomID); err == nil {
		coord.Leave(client.userID)
	}

	leftMsg, _ := NewMessage(MessageTypeRoomLeft, &LeaveRoomPayload{RoomID: roomID})
	client.SendMessage(leftMsg)

	h.logger.Debug("Client left room",
		zap.String("user_id", client.userID),
		zap.String("room_id", roomID),
	)
}

// SendChat posts a chat message to a room
func (h *Hub) SendChat(client *Client, payload SendChatPayload, requestID string) {
	if !client.IsInRoom(payload.RoomID) {
		client.sendError(403, "您尚未加入該自習室")
		return
	}

	coord, err := h.registry.Get(payload.RoomID)
	if err != nil {
		client.sendError(404, "自習室不存在")
		return
	}

	msg, err := coord.PostChat(client.userID, client.username, payload.Body)
	if err != nil {
		client.sendRoomError(err)
		return
	}

	ackMsg, _ := NewMessage(MessageTypeAck, &AckPayload{
		RequestID: requestID,
		Success:   true,
		Seq:       msg.Seq,
	})
	client.SendMessage(ackMsg)
}

// StartPomodoro starts the shared timer for a room
func (h *Hub) StartPomodoro(client *Client, payload StartPomodoroPayload, requestID string) {
	coord, err := h.registry.Get(payload.RoomID)
	if err != nil {
		client.sendError(404, "自習室不存在")
		return
	}

	if _, err := coord.StartPomodoro(client.userID, payload.WorkMinutes, payload.BreakMinutes); err != nil {
		client.sendRoomError(err)
		return
	}

	ackMsg, _ := NewMessage(MessageTypeAck, &AckPayload{RequestID: requestID, Success: true})
	client.SendMessage(ackMsg)
}

// StopPomodoro stops the shared timer for a room
func (h *Hub) StopPomodoro(client *Client, roomID, requestID string) {
	coord, err := h.registry.Get(roomID)
	if err != nil {
		client.sendError(404, "自習室不存在")
		return
	}

	if err := coord.StopPomodoro(client.userID); err != nil {
		client.sendRoomError(err)
		return
	}

	ackMsg, _ := NewMessage(MessageTypeAck, &AckPayload{RequestID: requestID, Success: true})
	client.SendMessage(ackMsg)
}

// ShareResource shares a resource with a room
func (h *Hub) ShareResource(client *Client, payload ShareResourcePayload, requestID string) {
	if !client.IsInRoom(payload.RoomID) {
		client.sendError(403, "您尚未加入該自習室")
		return
	}

	coord, err := h.registry.Get(payload.RoomID)
	if err != nil {
		client.sendError(404, "自習室不存在")
		return
	}

	res, err := coord.ShareResource(client.userID, client.username, payload.ResourceRef, payload.Title)
	if err != nil {
		client.sendRoomError(err)
		return
	}

	ackMsg, _ := NewMessage(MessageTypeAck, &AckPayload{
		RequestID: requestID,
		Success:   true,
		ID:        res.ID,
	})
	client.SendMessage(ackMsg)
}

// EndRoom ends a room on behalf of its host
func (h *Hub) EndRoom(client *Client, roomID, requestID string) {
	coord, err := h.registry.Get(roomID)
	if err != nil {
		client.sendError(404, "自習室不存在")
		return
	}

	if err := coord.EndRoom(client.userID); err != nil {
		client.sendRoomError(err)
		return
	}

	ackMsg, _ := NewMessage(MessageTypeAck, &AckPayload{RequestID: requestID, Success: true})
	client.SendMessage(ackMsg)
}

func (h *Hub) removeFromRoom(client *Client, roomID string) {
	h.mu.Lock()
	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) broadcastToRoom(rb *roomBroadcast) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[rb.RoomID]))
	for client := range h.rooms[rb.RoomID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.SendMessage(rb.Message)
	}

	if !rb.relayed {
		h.publishToRedis(rb.RoomID, rb.Message)
	}
}

// Redis Pub/Sub for horizontal scaling
func (h *Hub) publishToRedis(roomID string, msg *Message) {
	if h.redis == nil {
		return
	}

	data, err := json.Marshal(&redisEnvelope{
		RoomID:  roomID,
		Origin:  h.instanceID,
		Message: msg,
	})
	if err != nil {
		return
	}

	ctx := context.Background()
	h.redis.Publish(ctx, "room:"+roomID, data)
}

func (h *Hub) subscribeRedis() {
	if h.redis == nil {
		return
	}

	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "room:*")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}

		// Skip our own publications; local clients already got them
		if env.Origin == h.instanceID || env.Message == nil {
			continue
		}

		select {
		case h.events <- &roomBroadcast{RoomID: env.RoomID, Message: env.Message, relayed: true}:
		default:
			h.logger.Warn("Event buffer full, dropping relayed event",
				zap.String("room_id", env.RoomID),
			)
		}
	}
}

// GetRoomClients returns the number of clients subscribed to a room
func (h *Hub) GetRoomClients(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]int{
		"total_clients": len(h.clients),
		"active_rooms":  len(h.rooms),
		"live_rooms":    h.registry.Len(),
	}
}

// wsError maps a coordinator sentinel to a client-facing error
func wsError(err error) (int, string) {
	switch {
	case errors.Is(err, room.ErrForbidden):
		return 403, "自習室密碼錯誤"
	case errors.Is(err, room.ErrNotHost):
		return 403, "只有房主可以執行此操作"
	case errors.Is(err, room.ErrNotAMember):
		return 403, "您尚未加入該自習室"
	case errors.Is(err, room.ErrRoomNotFound):
		return 404, "自習室不存在"
	case errors.Is(err, room.ErrRoomClosed):
		return 410, "自習室已結束"
	case errors.Is(err, room.ErrRoomFull):
		return 422, "自習室已滿"
	default:
		return 500, "伺服器內部錯誤"
	}
}
