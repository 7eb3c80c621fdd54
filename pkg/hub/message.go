// Package hub fans out orchestrator events to websocket observers using a
// channel-based broadcast loop.
package hub

import "github.com/teslashibe/agrivoice/pkg/protocol"

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (e.g., audio)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte

	// kind is the protocol type of a JSON message, used for replay.
	kind protocol.MessageType
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// sticky lists event types whose latest value is replayed to clients that
// connect later.
var sticky = map[protocol.MessageType]bool{
	protocol.TypeState:    true,
	protocol.TypeLanguage: true,
}
