package network

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/domain/equipment"
	"github.com/amornj/medsim-sub000/internal/engine"
	"github.com/amornj/medsim-sub000/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
	// Minimum spacing between commands from one client.
	commandCooldown = 250 * time.Millisecond
)

// ClientCommand represents an incoming command from the frontend.
type ClientCommand struct {
	Type        string                 `json:"type"` // "PLACE_EQUIPMENT", "DELIVER_SHOCK", etc.
	EquipmentID string                 `json:"equipment_id,omitempty"`
	Equipment   string                 `json:"equipment,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
}

// Client holds one WebSocket connection bound to a single session.
type Client struct {
	hub             *Hub
	manager         *engine.Manager
	conn            *websocket.Conn
	send            chan []byte
	sessionID       string
	lastCommandTime time.Time

	// sendMu guards closed and the close of send. The read pump pushes acks
	// and errors onto send while the hub may concurrently evict the client,
	// so the close and every producer-side write share this lock.
	sendMu sync.Mutex
	closed bool
}

// NewClient creates a WebSocket client attached to the given session.
func NewClient(hub *Hub, manager *engine.Manager, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		hub:       hub,
		manager:   manager,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump pumps commands from the websocket connection into the engine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.Get().RecordWSError()
				c.hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendError("malformed command: " + err.Error())
			continue
		}

		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd ClientCommand) {
	if time.Since(c.lastCommandTime) < commandCooldown {
		c.sendError("too many commands, slow down")
		return
	}
	c.lastCommandTime = time.Now()

	session, ok := c.manager.Get(c.sessionID)
	if !ok {
		c.sendError("session not found")
		return
	}

	switch cmd.Type {
	case "PLACE_EQUIPMENT":
		inst, err := session.PlaceEquipment(equipment.Type(cmd.Equipment), cmd.Settings)
		if err != nil {
			c.sendError(placementErrorMessage(err))
			return
		}
		c.sendAck(map[string]interface{}{
			"placed":       true,
			"equipment_id": inst.ID,
			"equipment":    string(inst.Type),
			"funds":        session.Funds(),
		})
	case "REMOVE_EQUIPMENT":
		if err := session.RemoveEquipment(cmd.EquipmentID); err != nil {
			c.sendError(placementErrorMessage(err))
			return
		}
		c.sendAck(map[string]interface{}{"removed": true, "equipment_id": cmd.EquipmentID})
	case "UPDATE_SETTINGS":
		if err := session.UpdateSettings(cmd.EquipmentID, cmd.Settings); err != nil {
			c.sendError(placementErrorMessage(err))
			return
		}
		c.sendAck(map[string]interface{}{"updated": true, "equipment_id": cmd.EquipmentID})
	case "DELIVER_SHOCK":
		if err := session.DeliverShock(cmd.EquipmentID); err != nil {
			c.sendError(placementErrorMessage(err))
			return
		}
		c.sendAck(map[string]interface{}{"shocked": true, "equipment_id": cmd.EquipmentID})
	case "COMPLETE":
		out, err := session.Complete()
		if err != nil {
			c.sendError(placementErrorMessage(err))
			return
		}
		c.hub.PublishOutcome(c.sessionID, out)
	case "ABANDON":
		out, err := session.Abandon()
		if err != nil {
			c.sendError(placementErrorMessage(err))
			return
		}
		c.hub.PublishOutcome(c.sessionID, out)
	default:
		c.sendError("unknown command type: " + cmd.Type)
	}
}

// placementErrorMessage maps engine errors to messages safe for the frontend.
func placementErrorMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrSessionOver):
		return "session is over"
	case errors.Is(err, engine.ErrInsufficientFunds):
		return "insufficient funds"
	case errors.Is(err, engine.ErrMalfunction):
		return "equipment malfunctioned on delivery"
	case errors.Is(err, engine.ErrNotFound):
		return "equipment not found"
	default:
		return err.Error()
	}
}

func (c *Client) sendError(msg string) {
	c.push(Message{
		Type:      MsgTypeError,
		SessionID: c.sessionID,
		Timestamp: time.Now().Unix(),
		Payload:   map[string]string{"error": msg},
	})
}

func (c *Client) sendAck(payload interface{}) {
	c.push(Message{
		Type:      MsgTypeAck,
		SessionID: c.sessionID,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	})
}

func (c *Client) push(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend detaches the client from its send channel. Only the hub calls
// this; afterwards push becomes a no-op instead of a write on a closed
// channel. Safe to call more than once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
