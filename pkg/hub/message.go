// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
//
// The dashboard subscribes to it for orchestrator state, messages and
// latency updates.
package hub

import "encoding/json"

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Event is the envelope for dashboard updates: {"event": ..., "data": ...}.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Dashboard event names.
const (
	EventState    = "state"
	EventMessages = "messages"
	EventLatency  = "latency"
)

// EncodeEvent marshals an event envelope.
func EncodeEvent(name string, data any) ([]byte, error) {
	return json.Marshal(Event{Event: name, Data: data})
}
