package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/redenvelope/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection binds one WebSocket client to one session. It observes the
// session and forwards every event to the client.
type Connection struct {
	conn      *websocket.Conn
	session   *game.Session
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, session *game.Session, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:    conn,
		session: session,
		send:    make(chan *Message, 256),
		logger:  logger.WithPrefix("conn").With("session", session.ID()),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the session and begins pumping messages.
func (c *Connection) Start() {
	c.session.Subscribe(c)
	go c.writePump()
	go c.readPump()

	c.reply(MessageTypeSnapshot, "", c.session.Snapshot())
}

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close unsubscribes and closes the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.session.Unsubscribe(c)
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// OnEvent forwards a session event. It runs inside the session's serialized
// section, so it only queues.
func (c *Connection) OnEvent(event game.Event) {
	msg, err := MessageFromEvent(event)
	if err != nil {
		c.logger.Error("Failed to encode event", "type", event.EventType(), "error", err)
		return
	}
	if msg == nil {
		return
	}
	_ = c.SendMessage(msg)
}

// SendMessage queues msg for the client without blocking.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeStartDraw:
		var data PositionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse start draw data")
			return
		}
		c.result(msg, data.Position, c.session.StartDraw(data.Position))

	case MessageTypeStopDraw:
		var data StopDrawData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse stop draw data")
			return
		}
		var err error
		if data.Value != nil {
			err = c.session.StopDrawAt(data.Position, *data.Value)
		} else {
			err = c.session.StopDraw(data.Position)
		}
		c.result(msg, data.Position, err)

	case MessageTypeFlip:
		var data PositionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse flip data")
			return
		}
		c.result(msg, data.Position, c.session.Flip(data.Position))

	case MessageTypeSnapshot:
		c.reply(MessageTypeSnapshot, msg.RequestID, c.session.Snapshot())

	default:
		c.sendError(msg.RequestID, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// result acknowledges a command or reports why it was rejected.
func (c *Connection) result(msg *Message, position int, err error) {
	if err != nil {
		if game.IsUserCorrectable(err) {
			c.logger.Debug("Command rejected", "type", msg.Type, "position", position, "error", err)
		} else {
			c.logger.Warn("Command failed", "type", msg.Type, "position", position, "error", err)
		}
		c.reply(MessageTypeError, msg.RequestID, errorData(err))
		return
	}
	c.reply(MessageTypeAck, msg.RequestID, AckData{Op: msg.Type, Position: position})
}

func (c *Connection) sendError(requestID, code, message string) {
	c.reply(MessageTypeError, requestID, ErrorData{Code: code, Message: message})
}

func (c *Connection) reply(mt MessageType, requestID string, data any) {
	msg, err := NewMessage(mt, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", mt, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}
