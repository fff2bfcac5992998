package protocol

import (
	"encoding/base64"
	"fmt"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewTranscriptMessage creates a transcript message
func NewTranscriptMessage(text string, final bool) (*Message, error) {
	return NewMessage(TypeTranscript, TranscriptData{Text: text, IsFinal: final})
}

// NewVolumeMessage creates a volume message with a normalized level
func NewVolumeMessage(level float64) (*Message, error) {
	return NewMessage(TypeVolume, VolumeData{Level: &level})
}

// NewListeningMessage creates a recognizer lifecycle message
func NewListeningMessage(active bool) (*Message, error) {
	return NewMessage(TypeListening, ListeningData{Active: active})
}

// NewRecognitionErrorMessage creates a recognizer error message
func NewRecognitionErrorMessage(code string) (*Message, error) {
	return NewMessage(TypeRecognitionError, RecognitionErrorData{Code: code})
}

// NewPlaybackDoneMessage acknowledges a speak message; errMsg is empty on success
func NewPlaybackDoneMessage(id, errMsg string) (*Message, error) {
	return NewMessage(TypePlaybackDone, PlaybackDoneData{ID: id, Error: errMsg})
}

// NewInputMessage creates a typed-text message
func NewInputMessage(text string) (*Message, error) {
	return NewMessage(TypeInput, InputData{Text: text})
}

// NewSpeakMessage creates a speak message with audio data
func NewSpeakMessage(id, text string, audioData []byte, format string, sampleRate int) (*Message, error) {
	return NewMessage(TypeSpeak, SpeakData{
		ID:         id,
		Text:       text,
		Format:     format,
		SampleRate: sampleRate,
		Data:       base64.StdEncoding.EncodeToString(audioData),
	})
}

// NewStopAudioMessage creates a stop message
func NewStopAudioMessage() (*Message, error) {
	return NewMessage(TypeStopAudio, nil)
}

// NewListenMessage creates a recognizer control message
func NewListenMessage(enabled bool) (*Message, error) {
	return NewMessage(TypeListen, ListenData{Enabled: enabled})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: ts})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

func parseAs[T any](m *Message, want MessageType) (*T, error) {
	if m.Type != want {
		return nil, fmt.Errorf("protocol: expected %s message, got %s", want, m.Type)
	}
	var data T
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTranscriptData extracts transcript data from a message
func (m *Message) GetTranscriptData() (*TranscriptData, error) {
	return parseAs[TranscriptData](m, TypeTranscript)
}

// GetVolumeData extracts volume data from a message
func (m *Message) GetVolumeData() (*VolumeData, error) {
	return parseAs[VolumeData](m, TypeVolume)
}

// GetListeningData extracts lifecycle data from a message
func (m *Message) GetListeningData() (*ListeningData, error) {
	return parseAs[ListeningData](m, TypeListening)
}

// GetRecognitionErrorData extracts recognizer error data from a message
func (m *Message) GetRecognitionErrorData() (*RecognitionErrorData, error) {
	return parseAs[RecognitionErrorData](m, TypeRecognitionError)
}

// GetPlaybackDoneData extracts a playback acknowledgement from a message
func (m *Message) GetPlaybackDoneData() (*PlaybackDoneData, error) {
	return parseAs[PlaybackDoneData](m, TypePlaybackDone)
}

// GetInputData extracts typed text from a message
func (m *Message) GetInputData() (*InputData, error) {
	return parseAs[InputData](m, TypeInput)
}

// GetSpeakData extracts speak data from a message
func (m *Message) GetSpeakData() (*SpeakData, error) {
	return parseAs[SpeakData](m, TypeSpeak)
}

// DecodeSpeakData decodes the base64 audio data
func (s *SpeakData) DecodeSpeakData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.Data)
}

// GetListenData extracts recognizer control data from a message
func (m *Message) GetListenData() (*ListenData, error) {
	return parseAs[ListenData](m, TypeListen)
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	return parseAs[PingData](m, TypePing)
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	return parseAs[PongData](m, TypePong)
}
