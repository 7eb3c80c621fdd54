// Package bridge relays speech capture and playback to the browser's own
// engines over a websocket. One browser is active at a time; a new
// connection replaces the previous one.
package bridge

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/agrivoice/pkg/protocol"
)

// ErrNotConnected is returned by Send when no browser is attached.
var ErrNotConnected = errors.New("bridge: no browser connected")

// TypeDisconnected is dispatched locally when the active browser goes away.
const TypeDisconnected protocol.MessageType = "bridge.disconnected"

// Handler receives one inbound message. Handlers run on the read loop and
// must not block.
type Handler func(msg *protocol.Message)

// Transport is the relay surface used by the speech engines.
type Transport interface {
	Send(t protocol.MessageType, data any) error
	Handle(t protocol.MessageType, h Handler)
	Connected() bool
}

// Conn is the part of *websocket.Conn the bridge needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// Connection is an attached browser.
type Connection struct {
	ID        string
	Connected time.Time

	conn     Conn
	mu       sync.Mutex
	lastSeen time.Time
}

func (c *Connection) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Bridge owns the browser connection and dispatches its messages.
type Bridge struct {
	mu       sync.RWMutex
	active   *Connection
	caps     protocol.Caps
	handlers map[protocol.MessageType][]Handler
	logger   *slog.Logger

	received atomic.Uint64
	sent     atomic.Uint64
}

// New creates a bridge. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		handlers: make(map[protocol.MessageType][]Handler),
		logger:   logger.With("component", "bridge"),
	}
}

// Handle subscribes h to messages of type t.
func (b *Bridge) Handle(t protocol.MessageType, h Handler) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
}

// Connected reports whether a browser is attached.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active != nil
}

// Caps returns the capabilities the active browser announced.
func (b *Bridge) Caps() protocol.Caps {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.caps
}

// Send delivers a message to the active browser.
func (b *Bridge) Send(t protocol.MessageType, data any) error {
	b.mu.RLock()
	c := b.active
	b.mu.RUnlock()
	if c == nil {
		return ErrNotConnected
	}

	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		return err
	}
	if err := c.send(msg); err != nil {
		return err
	}
	b.sent.Add(1)
	return nil
}

// RegisterRoutes mounts the bridge endpoint at /ws/bridge. The caller
// installs the websocket upgrade guard on /ws.
func (b *Bridge) RegisterRoutes(app fiber.Router) {
	app.Get("/ws/bridge", websocket.New(func(c *websocket.Conn) {
		b.Serve(c)
	}))
}

// Serve attaches conn as the active browser and runs its read loop until
// the connection fails.
func (b *Bridge) Serve(conn Conn) {
	c := &Connection{
		ID:        uuid.NewString(),
		Connected: time.Now(),
		lastSeen:  time.Now(),
		conn:      conn,
	}

	b.mu.Lock()
	prev := b.active
	b.active = c
	b.caps = protocol.Caps{}
	b.mu.Unlock()
	if prev != nil {
		b.logger.Info("replacing browser connection", "previous", prev.ID)
		prev.conn.Close()
	}
	b.logger.Info("browser connected", "id", c.ID)

	defer func() {
		b.mu.Lock()
		current := b.active == c
		if current {
			b.active = nil
		}
		b.mu.Unlock()
		conn.Close()
		b.logger.Info("browser disconnected", "id", c.ID)
		if current {
			b.dispatch(&protocol.Message{Type: TypeDisconnected, Timestamp: time.Now().UnixMilli()})
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.logger.Debug("bridge read error", "id", c.ID, "error", err)
			return
		}
		c.mu.Lock()
		c.lastSeen = time.Now()
		c.mu.Unlock()
		b.received.Add(1)
		b.handleMessage(c, data)
	}
}

func (b *Bridge) handleMessage(c *Connection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.logger.Warn("invalid bridge message", "id", c.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		pong, err := protocol.Pong(msg)
		if err == nil {
			_ = c.send(pong)
		}
		return
	case protocol.TypeCaps:
		caps, err := protocol.Decode[protocol.Caps](msg)
		if err != nil {
			b.logger.Warn("invalid caps", "error", err)
			return
		}
		b.mu.Lock()
		b.caps = *caps
		b.mu.Unlock()
		b.logger.Info("browser capabilities", "recognition", caps.Recognition, "synthesis", caps.Synthesis)
	}
	b.dispatch(msg)
}

func (b *Bridge) dispatch(msg *protocol.Message) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[msg.Type]...)
	b.mu.RUnlock()
	for _, h := range hs {
		h(msg)
	}
}

// Stats contains bridge counters
type Stats struct {
	Connected        bool      `json:"connected"`
	ConnectionID     string    `json:"connection_id,omitempty"`
	LastSeen         time.Time `json:"last_seen,omitempty"`
	MessagesReceived uint64    `json:"messages_received"`
	MessagesSent     uint64    `json:"messages_sent"`
}

// GetStats returns bridge counters
func (b *Bridge) GetStats() Stats {
	s := Stats{
		MessagesReceived: b.received.Load(),
		MessagesSent:     b.sent.Load(),
	}
	b.mu.RLock()
	c := b.active
	b.mu.RUnlock()
	if c != nil {
		c.mu.Lock()
		s.Connected = true
		s.ConnectionID = c.ID
		s.LastSeen = c.lastSeen
		c.mu.Unlock()
	}
	return s
}

var _ Transport = (*Bridge)(nil)
