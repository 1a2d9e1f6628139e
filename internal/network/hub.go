package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/engine"
	"github.com/amornj/medsim-sub000/internal/platform/metrics"
)

// MessageType tags outbound frames so the frontend can route them.
type MessageType string

const (
	MsgTypeSnapshot MessageType = "SNAPSHOT"
	MsgTypeOutcome  MessageType = "OUTCOME"
	MsgTypeError    MessageType = "ERROR"
	MsgTypeAck      MessageType = "ACK"
)

// Message is the envelope for everything the hub pushes to clients.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

type outbound struct {
	sessionID string
	data      []byte
}

// Hub maintains the set of active clients and fans committed snapshots out to
// the ones watching each session. It implements engine.SnapshotSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("websocket client connected",
				zap.String("session_id", client.sessionID),
				zap.Int("watchers", h.WatcherCount(client.sessionID)))
		case client := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[client]
			if known {
				delete(h.clients, client)
				client.closeSend()
				metrics.Get().RecordWSConnection(-1)
			}
			h.mu.Unlock()
			if known {
				h.logger.Info("websocket client disconnected",
					zap.String("session_id", client.sessionID),
					zap.Int("watchers", h.WatcherCount(client.sessionID)))
			}
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.sessionID != msg.sessionID {
					continue
				}
				select {
				case client.send <- msg.data:
					metrics.Get().RecordWSMessage(false)
				default:
					metrics.Get().RecordWSError()
					client.closeSend()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish serializes a committed snapshot and sends it to every client
// watching that session. Called from engine tick listeners.
func (h *Hub) Publish(snap engine.Snapshot) {
	h.send(snap.SessionID, Message{
		Type:      MsgTypeSnapshot,
		SessionID: snap.SessionID,
		Timestamp: time.Now().Unix(),
		Payload:   snap,
	})
}

// PublishOutcome notifies watchers that the session reached a terminal state.
func (h *Hub) PublishOutcome(sessionID string, out engine.Outcome) {
	h.send(sessionID, Message{
		Type:      MsgTypeOutcome,
		SessionID: sessionID,
		Timestamp: time.Now().Unix(),
		Payload:   out,
	})
}

func (h *Hub) send(sessionID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to serialize broadcast message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{sessionID: sessionID, data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			zap.String("session_id", sessionID))
	}
}

// WatcherCount returns how many clients are attached to a session.
func (h *Hub) WatcherCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for client := range h.clients {
		if client.sessionID == sessionID {
			n++
		}
	}
	return n
}
