package recognition

import "sync"

// Feed is an in-process Source. Producers call the Push methods; the
// orchestrator reads the channels. Pushes block when a buffer is full, except
// volume samples which are dropped.
type Feed struct {
	transcripts chan Transcript
	volume      chan float64
	lifecycle   chan Lifecycle
	errors      chan *Error

	mu        sync.Mutex
	listening bool
	onListen  func(bool)
}

// NewFeed creates a Feed with the given channel buffer size.
func NewFeed(buffer int) *Feed {
	return &Feed{
		transcripts: make(chan Transcript, buffer),
		volume:      make(chan float64, buffer),
		lifecycle:   make(chan Lifecycle, buffer),
		errors:      make(chan *Error, buffer),
	}
}

func (f *Feed) Transcripts() <-chan Transcript { return f.transcripts }
func (f *Feed) Volume() <-chan float64         { return f.volume }
func (f *Feed) Lifecycle() <-chan Lifecycle    { return f.lifecycle }
func (f *Feed) Errors() <-chan *Error          { return f.errors }

// PushTranscript emits a transcript fragment.
func (f *Feed) PushTranscript(text string, final bool) {
	f.transcripts <- Transcript{Text: text, IsFinal: final}
}

// PushVolume emits a clamped volume sample, dropping it if nobody is reading.
func (f *Feed) PushVolume(level float64) {
	select {
	case f.volume <- ClampVolume(level):
	default:
	}
}

// PushLifecycle emits a start or end event.
func (f *Feed) PushLifecycle(l Lifecycle) {
	f.lifecycle <- l
}

// PushError emits a recognizer error.
func (f *Feed) PushError(code ErrorCode) {
	f.errors <- NewError(code)
}

// SetListening records the requested state and notifies OnListen.
func (f *Feed) SetListening(enabled bool) {
	f.mu.Lock()
	f.listening = enabled
	cb := f.onListen
	f.mu.Unlock()
	if cb != nil {
		cb(enabled)
	}
}

// Listening reports the last state requested through SetListening.
func (f *Feed) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

// OnListen registers a callback for SetListening.
func (f *Feed) OnListen(fn func(bool)) {
	f.mu.Lock()
	f.onListen = fn
	f.mu.Unlock()
}

var _ Source = (*Feed)(nil)
