// Package orchestrator runs the conversation state machine.
//
// A single goroutine (Run) owns the state. It selects over the recognizer's
// channels, the speaker's change channel, upward commands and turn results.
// Finalized transcripts are debounced, then processed one at a time: the
// utterance is classified, routed to a local tool or the dialogue backend in
// a worker goroutine, and the reply is logged and queued for speech. The loop
// never waits for playback. Transcripts that arrive while a turn is in flight
// are dropped.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/intent"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
	"github.com/teslashibe/go-jarvis/pkg/recognition"
)

// Dialogue is the remote conversation backend.
type Dialogue interface {
	Send(ctx context.Context, text string) (conversation.Message, error)
	SetSystemContext(text string)
	Clear()
}

// Tools answers utterances locally.
type Tools interface {
	Has(tag intent.Tag) bool
	Invoke(ctx context.Context, tag intent.Tag, utterance string) (conversation.Message, error)
}

// Classifier maps an utterance to a local tool tag.
type Classifier interface {
	Classify(utterance string) (intent.Tag, bool)
}

// Speaker is the speech output scheduler.
type Speaker interface {
	Enqueue(text, voice string)
	Stop()
	Speaking() bool
	Changes() <-chan bool
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Source     recognition.Source
	Classifier Classifier
	Tools      Tools
	Dialogue   Dialogue
	Speaker    Speaker

	// Latency is optional.
	Latency *metrics.Collector
}

// Route labels for turns.
const (
	RouteDialogue = "dialogue"
)

type commandKind int

const (
	cmdInput commandKind = iota
	cmdToggleMic
	cmdClear
)

type command struct {
	kind commandKind
	text string
}

type turnResult struct {
	gen   uint64
	route string
	msg   conversation.Message
	err   error
}

// Orchestrator coordinates recognition, routing and speech.
type Orchestrator struct {
	cfg  Config
	deps Deps

	log *conversation.Log

	commands chan command
	results  chan turnResult
	running  atomic.Bool

	mu        sync.RWMutex
	snapshot  State
	listeners []func(State)
	done      chan struct{}

	logger *zap.SugaredLogger

	// Owned by the Run goroutine.
	st         State
	pending    string
	debounce   *time.Timer
	greeting   *time.Timer
	turnGen    uint64
	turnCancel context.CancelFunc
	published  bool
	logRev     uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l.Sugar().With("component", "orchestrator")
		}
	}
}

// New creates an orchestrator. All dependencies except Latency are required.
func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Classifier == nil || deps.Tools == nil ||
		deps.Dialogue == nil || deps.Speaker == nil {
		return nil, errMissingDeps
	}

	o := &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		log:      conversation.NewLog(cfg.LogLimit),
		commands: make(chan command, 16),
		results:  make(chan turnResult, 1),
		done:     make(chan struct{}),
		logger:   zap.L().Sugar().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ManualInput submits typed text. It is handled like a finalized transcript
// without the debounce window.
func (o *Orchestrator) ManualInput(text string) {
	o.submit(command{kind: cmdInput, text: text})
}

// ToggleMic switches the microphone on or off.
func (o *Orchestrator) ToggleMic() {
	o.submit(command{kind: cmdToggleMic})
}

// Clear empties the conversation, stops speech and greets again.
func (o *Orchestrator) Clear() {
	o.submit(command{kind: cmdClear})
}

// submit queues c for Run. Commands sent after Run returned are dropped.
func (o *Orchestrator) submit(c command) {
	select {
	case o.commands <- c:
	case <-o.done:
	}
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Messages returns a copy of the visible log.
func (o *Orchestrator) Messages() []conversation.Message {
	return o.log.Messages()
}

// OnStateChange registers a callback invoked from the Run goroutine after
// every change to the state or the message log. Callbacks must not block.
func (o *Orchestrator) OnStateChange(fn func(State)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Run processes events until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(o.done)

	o.debounce = stoppedTimer()
	o.greeting = stoppedTimer()
	defer o.debounce.Stop()
	defer o.greeting.Stop()

	o.reset()
	if o.cfg.AutoListen {
		o.setMic(true)
	}
	o.publish()

	src := o.deps.Source
	for {
		select {
		case <-ctx.Done():
			o.cancelTurn()
			return ctx.Err()

		case t := <-src.Transcripts():
			o.onTranscript(t)

		case v := <-src.Volume():
			o.st.Volume = recognition.ClampVolume(v)

		case l := <-src.Lifecycle():
			o.onLifecycle(l)

		case e := <-src.Errors():
			o.onRecognitionError(e)

		case <-o.deps.Speaker.Changes():
			o.st.Speaking = o.deps.Speaker.Speaking()

		case <-o.debounce.C:
			text := o.pending
			o.pending = ""
			o.accept(ctx, text)

		case <-o.greeting.C:
			o.deps.Speaker.Enqueue(o.cfg.Greeting, o.cfg.Voice)

		case c := <-o.commands:
			o.onCommand(ctx, c)

		case r := <-o.results:
			o.onResult(r)
		}
		o.publish()
	}
}

func (o *Orchestrator) onTranscript(t recognition.Transcript) {
	if !t.IsFinal {
		o.st.InterimText = t.Text
		return
	}

	o.st.InterimText = ""
	text := t.Trimmed()
	if text == "" {
		return
	}
	if o.st.Processing {
		o.drop(text)
		return
	}

	o.pending = text
	resetTimer(o.debounce, o.cfg.Debounce)
}

func (o *Orchestrator) onLifecycle(l recognition.Lifecycle) {
	switch l {
	case recognition.Started:
		o.st.Listening = true
		o.st.ErrorMessage = ""
	case recognition.Ended:
		o.st.Listening = false
		o.st.Volume = 0
	}
}

func (o *Orchestrator) onRecognitionError(e *recognition.Error) {
	if e == nil {
		return
	}
	metrics.RecognitionErrors.WithLabelValues(string(e.Code)).Inc()
	o.logger.Warnw("recognition error", "code", e.Code, "detail", e.Detail)
	o.st.ErrorMessage = e.Message()
	o.st.Listening = false
	o.st.Volume = 0
}

func (o *Orchestrator) onCommand(ctx context.Context, c command) {
	switch c.kind {
	case cmdInput:
		o.accept(ctx, c.text)
	case cmdToggleMic:
		o.setMic(!o.st.MicEnabled)
	case cmdClear:
		o.clear()
	}
}

func (o *Orchestrator) setMic(enabled bool) {
	o.st.MicEnabled = enabled
	if !enabled {
		o.st.InterimText = ""
	}
	o.deps.Source.SetListening(enabled)
}

// reset installs the persona and schedules the greeting.
func (o *Orchestrator) reset() {
	if o.cfg.SystemPrompt != "" {
		o.deps.Dialogue.SetSystemContext(o.cfg.SystemPrompt)
		o.log.SetSystem(conversation.NewSystemMessage(o.cfg.SystemPrompt))
	}
	if o.cfg.Greeting != "" {
		o.log.Append(conversation.NewMessage(conversation.PrefixGreeting, conversation.RoleAssistant, o.cfg.Greeting))
		resetTimer(o.greeting, o.cfg.GreetingDelay)
	}
}

func (o *Orchestrator) clear() {
	o.cancelTurn()
	o.pending = ""
	o.debounce.Stop()
	o.greeting.Stop()

	o.deps.Speaker.Stop()
	o.deps.Dialogue.Clear()
	o.log.Clear()

	o.st.Processing = false
	o.st.InterimText = ""
	o.st.ErrorMessage = ""
	o.st.Speaking = o.deps.Speaker.Speaking()

	o.reset()
	o.logger.Infow("conversation cleared")
}

func (o *Orchestrator) publish() {
	rev := o.log.Revision()
	if o.published && o.st == o.snapshot && rev == o.logRev {
		return
	}
	o.published, o.logRev = true, rev

	o.mu.Lock()
	o.snapshot = o.st
	listeners := o.listeners
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(o.st)
	}
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, d time.Duration) {
	t.Stop()
	t.Reset(d)
}
