// Package protocol defines the WebSocket messages exchanged with voice devices.
//
// A device (browser tab, console, embedded client) runs speech recognition and
// audio playback. It streams recognition events to the server and receives
// synthesized speech back.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → Server messages
	TypeTranscript       MessageType = "transcript"        // Recognized speech fragment
	TypeVolume           MessageType = "volume"            // Microphone level
	TypeListening        MessageType = "listening"         // Recognizer started/ended
	TypeRecognitionError MessageType = "recognition_error" // Recognizer failure
	TypePlaybackDone     MessageType = "playback_done"     // Speak finished or failed
	TypeInput            MessageType = "input"             // Typed text

	// Server → Device messages
	TypeSpeak     MessageType = "speak"      // Audio to play
	TypeStopAudio MessageType = "stop_audio" // Interrupt playback
	TypeListen    MessageType = "listen"     // Start/stop the recognizer

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// TranscriptData is a recognized fragment.
type TranscriptData struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// VolumeData carries either a normalized level or raw frequency bins (0..255).
type VolumeData struct {
	Level *float64 `json:"level,omitempty"`
	Bins  []byte   `json:"bins,omitempty"`
}

// ListeningData reports whether the recognizer is capturing.
type ListeningData struct {
	Active bool `json:"active"`
}

// RecognitionErrorData carries a recognizer error code such as "no-speech".
type RecognitionErrorData struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// PlaybackDoneData acknowledges a speak message.
type PlaybackDoneData struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// InputData is text typed on the device.
type InputData struct {
	Text string `json:"text"`
}

// =============================================================================
// Server → Device Message Types
// =============================================================================

// SpeakData contains TTS audio to play
type SpeakData struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Format     string `json:"format"`      // "mp3_44100_128", "pcm_24000"
	SampleRate int    `json:"sample_rate"` // e.g., 24000
	Data       string `json:"data"`        // base64 encoded
}

// ListenData starts or stops the device recognizer.
type ListenData struct {
	Enabled bool `json:"enabled"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
