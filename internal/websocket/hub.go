package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"essay-coach-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// sessionFrame is an outbound frame addressed to every connection of a session.
type sessionFrame struct {
	sessionID uuid.UUID
	data      []byte
}

// Hub tracks live chat connections keyed by session id. A session can have
// several connections (multiple tabs); frames addressed to a session reach
// all of them, and Redis fans frames out to sessions held by other instances.
//
// All map mutation and every close of a client's Send channel happens on the
// Run goroutine, so a slow client dropped by two frames in a row is only
// closed once.
type Hub struct {
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan sessionFrame

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out; nil disables it
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan sessionFrame, 64),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session disconnected", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()

		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

// deliver hands a frame to every connection of the session, dropping any
// connection whose buffer is full. Runs on the Run goroutine only.
func (h *Hub) deliver(frame sessionFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[frame.sessionID]
	for i := 0; i < len(clients); i++ {
		client := clients[i]
		select {
		case client.Send <- frame.data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"session_id": frame.sessionID})
			close(client.Send)
			clients = append(clients[:i], clients[i+1:]...)
			i--
		}
	}

	if len(clients) == 0 {
		delete(h.clients, frame.sessionID)
	} else {
		h.clients[frame.sessionID] = clients
	}
}

// Send delivers a frame to every connection of a session, locally and via
// Redis for connections held by other instances.
func (h *Hub) Send(sessionID uuid.UUID, data []byte) {
	h.broadcast <- sessionFrame{sessionID: sessionID, data: data}

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_session_id": sessionID.String(),
			"message":           data,
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), "cluster_events", jsonPayload)
	}
}

// subscribeToRedis delivers frames published by other instances to sessions
// this instance holds locally. Every instance subscribes to the same channel
// and filters by session id.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		sid, err := uuid.Parse(payload.TargetSessionID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		_, held := h.clients[sid]
		h.mu.RUnlock()
		if held {
			h.broadcast <- sessionFrame{sessionID: sid, data: payload.Message}
		}
	}
}
