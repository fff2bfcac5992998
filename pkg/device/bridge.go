// Package device bridges WebSocket voice devices into the assistant.
//
// Devices run speech recognition and audio playback. The Bridge turns their
// recognition events into a recognition.Source and plays synthesized speech
// on them as an audio.Player, waiting for each playback_done acknowledgement.
package device

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/audio"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
	"github.com/teslashibe/go-jarvis/pkg/protocol"
	"github.com/teslashibe/go-jarvis/pkg/recognition"
	"github.com/teslashibe/go-jarvis/pkg/tts"
)

var (
	// ErrNoDevice is returned when audio is played with no device connected.
	ErrNoDevice = errors.New("device: no device connected")

	// ErrPlaybackTimeout is returned when no device acknowledged playback in time.
	ErrPlaybackTimeout = errors.New("device: playback acknowledgement timed out")

	// ErrClosed is returned after the bridge has been closed.
	ErrClosed = errors.New("device: bridge closed")
)

// PlaybackError is a failure reported by the device in playback_done.
type PlaybackError struct {
	Device  string
	Message string
}

func (e *PlaybackError) Error() string {
	return "device " + e.Device + ": playback failed: " + e.Message
}

// DefaultGrace is added to the audio duration when waiting for playback_done.
const DefaultGrace = 5 * time.Second

const maxMessageSize = 64 * 1024

// Bridge manages device connections.
type Bridge struct {
	mu        sync.RWMutex
	devices   map[string]*Connection
	pending   map[string]chan error
	listening bool

	transcripts chan recognition.Transcript
	volume      chan float64
	lifecycle   chan recognition.Lifecycle
	errs        chan *recognition.Error
	inputs      chan string

	grace  time.Duration
	logger *zap.SugaredLogger

	done      chan struct{}
	closeOnce sync.Once

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithGrace sets the extra time allowed beyond the audio duration.
func WithGrace(d time.Duration) Option {
	return func(b *Bridge) { b.grace = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l.Sugar().With("component", "device.bridge")
		}
	}
}

// NewBridge creates a bridge. Listening starts enabled.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		devices:     make(map[string]*Connection),
		pending:     make(map[string]chan error),
		listening:   true,
		transcripts: make(chan recognition.Transcript, 64),
		volume:      make(chan float64, 64),
		lifecycle:   make(chan recognition.Lifecycle, 16),
		errs:        make(chan *recognition.Error, 16),
		inputs:      make(chan string, 16),
		grace:       DefaultGrace,
		logger:      zap.L().Sugar().With("component", "device.bridge"),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Transcripts() <-chan recognition.Transcript { return b.transcripts }
func (b *Bridge) Volume() <-chan float64                    { return b.volume }
func (b *Bridge) Lifecycle() <-chan recognition.Lifecycle   { return b.lifecycle }
func (b *Bridge) Errors() <-chan *recognition.Error         { return b.errs }

// Inputs carries text typed on devices.
func (b *Bridge) Inputs() <-chan string { return b.inputs }

// SetListening tells every device to start or stop its recognizer. Devices
// that connect later receive the current setting.
func (b *Bridge) SetListening(enabled bool) {
	b.mu.Lock()
	b.listening = enabled
	b.mu.Unlock()

	msg, err := protocol.NewListenMessage(enabled)
	if err != nil {
		return
	}
	b.Broadcast(msg)
}

// Listening reports the last requested recognizer state.
func (b *Bridge) Listening() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listening
}

// Play sends audio to every connected device and waits for the first
// playback_done acknowledgement. Cancelling ctx sends stop_audio.
func (b *Bridge) Play(ctx context.Context, res *tts.AudioResult) error {
	if res == nil || len(res.Audio) == 0 {
		return audio.ErrNoAudio
	}
	if b.Count() == 0 {
		return ErrNoDevice
	}

	id := uuid.NewString()
	msg, err := protocol.NewSpeakMessage(id, res.Text, res.Audio, string(res.Format.Encoding), res.Format.SampleRate)
	if err != nil {
		return err
	}

	ack := make(chan error, 1)
	b.mu.Lock()
	b.pending[id] = ack
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if b.Broadcast(msg) == 0 {
		return ErrNoDevice
	}

	timer := time.NewTimer(res.Duration + b.grace)
	defer timer.Stop()

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		b.stopAudio()
		return ctx.Err()
	case <-timer.C:
		b.stopAudio()
		return ErrPlaybackTimeout
	case <-b.done:
		return ErrClosed
	}
}

func (b *Bridge) stopAudio() {
	msg, err := protocol.NewStopAudioMessage()
	if err != nil {
		return
	}
	b.Broadcast(msg)
}

// Broadcast sends a message to all connected devices and returns how many
// accepted it.
func (b *Bridge) Broadcast(msg *protocol.Message) int {
	sent := 0
	for _, d := range b.connections() {
		b.messagesSent.Add(1)
		if err := d.Send(msg); err != nil {
			b.logger.Warnw("send failed", "device", d.ID, "type", msg.Type, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Close stops delivering events and fails pending playbacks.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

// Count returns the number of connected devices.
func (b *Bridge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.devices)
}

// Infos describes the connected devices, ordered by connection time.
func (b *Bridge) Infos() []Info {
	conns := b.connections()
	infos := make([]Info, 0, len(conns))
	for _, d := range conns {
		infos = append(infos, d.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Connected.Before(infos[j].Connected) })
	return infos
}

// Stats contains bridge statistics.
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
}

// GetStats returns bridge statistics.
func (b *Bridge) GetStats() Stats {
	return Stats{
		DeviceCount:      b.Count(),
		MessagesReceived: b.messagesReceived.Load(),
		MessagesSent:     b.messagesSent.Load(),
	}
}

func (b *Bridge) connections() []*Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Connection, 0, len(b.devices))
	for _, d := range b.devices {
		out = append(out, d)
	}
	return out
}

// serve runs one device connection until it closes.
func (b *Bridge) serve(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	dev := &Connection{ID: id, Conn: c, Connected: now, LastSeen: now}

	b.mu.Lock()
	if old, ok := b.devices[id]; ok {
		old.Conn.Close()
	}
	b.devices[id] = dev
	count := len(b.devices)
	listening := b.listening
	b.mu.Unlock()

	metrics.ConnectedDevices.Set(float64(count))
	b.logger.Infow("device connected", "device", id, "total", count)

	if msg, err := protocol.NewListenMessage(listening); err == nil {
		dev.Send(msg)
	}

	defer func() {
		b.mu.Lock()
		if b.devices[id] == dev {
			delete(b.devices, id)
		}
		count := len(b.devices)
		b.mu.Unlock()
		metrics.ConnectedDevices.Set(float64(count))
		b.logger.Infow("device disconnected", "device", id, "total", count)
	}()

	c.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			b.logger.Debugw("read ended", "device", id, "error", err)
			return
		}
		dev.touch()
		b.messagesReceived.Add(1)
		b.handleMessage(dev, data)
	}
}

// handleMessage processes an incoming message from a device.
func (b *Bridge) handleMessage(dev *Connection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.logger.Warnw("parse error", "device", dev.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeTranscript:
		t, err := msg.GetTranscriptData()
		if err != nil {
			break
		}
		deliver(b, b.transcripts, recognition.Transcript{Text: t.Text, IsFinal: t.IsFinal})

	case protocol.TypeVolume:
		v, err := msg.GetVolumeData()
		if err != nil {
			break
		}
		level := recognition.NormalizeVolume(v.Bins)
		if v.Level != nil {
			level = recognition.ClampVolume(*v.Level)
		}
		select {
		case b.volume <- level:
		default:
		}

	case protocol.TypeListening:
		l, err := msg.GetListeningData()
		if err != nil {
			break
		}
		ev := recognition.Ended
		if l.Active {
			ev = recognition.Started
		}
		deliver(b, b.lifecycle, ev)

	case protocol.TypeRecognitionError:
		e, err := msg.GetRecognitionErrorData()
		if err != nil {
			break
		}
		deliver(b, b.errs, &recognition.Error{Code: recognition.ErrorCode(e.Code), Detail: e.Detail})

	case protocol.TypePlaybackDone:
		p, err := msg.GetPlaybackDoneData()
		if err != nil {
			break
		}
		b.ack(dev.ID, p)

	case protocol.TypeInput:
		in, err := msg.GetInputData()
		if err != nil {
			break
		}
		deliver(b, b.inputs, in.Text)

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			b.messagesSent.Add(1)
			dev.Send(pong)
		}

	default:
		b.logger.Debugw("ignoring message", "device", dev.ID, "type", msg.Type)
	}
}

func (b *Bridge) ack(deviceID string, p *protocol.PlaybackDoneData) {
	b.mu.RLock()
	ch, ok := b.pending[p.ID]
	b.mu.RUnlock()
	if !ok {
		return
	}

	var err error
	if p.Error != "" {
		err = &PlaybackError{Device: deviceID, Message: p.Error}
	}
	select {
	case ch <- err:
	default:
	}
}

func deliver[T any](b *Bridge, ch chan T, v T) {
	select {
	case ch <- v:
	case <-b.done:
	}
}

var (
	_ recognition.Source = (*Bridge)(nil)
	_ audio.Player       = (*Bridge)(nil)
)
