package bridge

import (
	"sync"
	"time"

	"github.com/teslashibe/agrivoice/pkg/protocol"
)

// Mock is an in-process Transport. Sent messages are recorded and Deliver
// plays the browser side.
type Mock struct {
	mu        sync.Mutex
	handlers  map[protocol.MessageType][]Handler
	sent      []*protocol.Message
	connected bool
	sendErr   error

	// OnSend, when set, is called after each recorded Send.
	OnSend func(msg *protocol.Message)
}

// NewMock returns a connected Mock.
func NewMock() *Mock {
	return &Mock{handlers: make(map[protocol.MessageType][]Handler), connected: true}
}

// Send implements Transport.
func (m *Mock) Send(t protocol.MessageType, data any) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, msg)
	hook := m.OnSend
	m.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return nil
}

// Handle implements Transport.
func (m *Mock) Handle(t protocol.MessageType, h Handler) {
	m.mu.Lock()
	m.handlers[t] = append(m.handlers[t], h)
	m.mu.Unlock()
}

// Connected implements Transport.
func (m *Mock) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected toggles the connection state.
func (m *Mock) SetConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// SetSendError makes every Send fail with err.
func (m *Mock) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// Deliver dispatches a browser message to the subscribed handlers.
func (m *Mock) Deliver(t protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		panic(err)
	}
	msg.Timestamp = time.Now().UnixMilli()

	m.mu.Lock()
	hs := append([]Handler(nil), m.handlers[t]...)
	m.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}

// Sent returns the messages sent so far.
func (m *Mock) Sent() []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Message(nil), m.sent...)
}

// SentTypes returns the types of the messages sent so far.
func (m *Mock) SentTypes() []protocol.MessageType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.MessageType, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.Type
	}
	return out
}

// Last returns the most recent message of type t, or nil.
func (m *Mock) Last(t protocol.MessageType) *protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Type == t {
			return m.sent[i]
		}
	}
	return nil
}

var _ Transport = (*Mock)(nil)
