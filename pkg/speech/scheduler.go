// Package speech schedules synthesized replies onto a single output channel.
//
// At most one synthesize-and-play operation runs at a time. Requests that
// arrive while the channel is busy wait in a FIFO queue. Failures are logged
// and counted but never stall the queue.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/audio"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
	"github.com/teslashibe/go-jarvis/pkg/tts"
)

// DefaultSynthesisTimeout bounds a single synthesis call.
const DefaultSynthesisTimeout = 30 * time.Second

// Request is one utterance waiting to be spoken.
type Request struct {
	Text  string
	Voice string
}

// Stage names where a playback failed.
const (
	StageSynthesize = "synthesize"
	StagePlay       = "play"
)

// PlaybackError is a synthesis or playback failure.
type PlaybackError struct {
	Stage string
	Text  string
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("speech: %s %q: %v", e.Stage, e.Text, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Scheduler owns the speaking flag and the pending queue.
type Scheduler struct {
	synth  tts.Provider
	player audio.Player

	voice        string
	synthTimeout time.Duration
	onStart      func(Request)
	onError      func(error)
	logger       *zap.SugaredLogger

	mu       sync.Mutex
	speaking bool
	queue    []Request
	cancel   context.CancelFunc
	gen      uint64
	last     chan struct{} // closed when the most recent run exits

	changes chan bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithVoice sets the voice used when a request names none.
func WithVoice(voice string) Option {
	return func(s *Scheduler) { s.voice = voice }
}

// WithSynthesisTimeout bounds each synthesis call.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.synthTimeout = d }
}

// WithOnStart registers a callback invoked when audio for a request starts playing.
func WithOnStart(fn func(Request)) Option {
	return func(s *Scheduler) { s.onStart = fn }
}

// WithErrorHandler registers a callback for swallowed playback errors.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l.Sugar().With("component", "speech.scheduler")
		}
	}
}

// New creates a scheduler that synthesizes with synth and plays with player.
func New(synth tts.Provider, player audio.Player, opts ...Option) *Scheduler {
	done := make(chan struct{})
	close(done)
	s := &Scheduler{
		synth:        synth,
		player:       player,
		synthTimeout: DefaultSynthesisTimeout,
		logger:       zap.L().Sugar().With("component", "speech.scheduler"),
		last:         done,
		changes:      make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue schedules text to be spoken. It returns immediately. Text that is
// empty after sanitization is skipped.
func (s *Scheduler) Enqueue(text, voice string) {
	text = tts.Sanitize(text)
	if text == "" {
		return
	}
	if voice == "" {
		voice = s.voice
	}
	req := Request{Text: text, Voice: voice}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speaking {
		s.queue = append(s.queue, req)
		metrics.SpeechQueueDepth.Set(float64(len(s.queue)))
		s.logger.Debugw("queued utterance", "pending", len(s.queue))
		return
	}

	s.speaking = true
	s.notifyLocked(true)
	s.startLocked(req)
}

// Stop cancels the utterance being spoken and discards everything queued.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	dropped := len(s.queue)
	s.queue = nil
	metrics.SpeechQueueDepth.Set(0)

	if s.speaking {
		s.speaking = false
		s.notifyLocked(false)
		s.logger.Debugw("stopped speech", "dropped", dropped)
	}
}

// Speaking reports whether an utterance is being synthesized or played.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Pending returns the number of queued utterances.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Changes delivers the speaking flag whenever it changes. Only the latest
// value is kept if the reader falls behind.
func (s *Scheduler) Changes() <-chan bool {
	return s.changes
}

// Wait blocks until every started utterance has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops speech and waits for the output channel to go idle.
func (s *Scheduler) Close() error {
	s.Stop()
	s.Wait()
	return nil
}

func (s *Scheduler) startLocked(req Request) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	prev := s.last
	done := make(chan struct{})
	s.last = done

	gen := s.gen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		// A stopped run may still be unwinding; never overlap with it.
		<-prev
		if ctx.Err() == nil {
			s.speak(ctx, req)
		}
		s.finish(gen)
	}()
}

func (s *Scheduler) speak(ctx context.Context, req Request) {
	sctx, scancel := context.WithTimeout(ctx, s.synthTimeout)
	res, err := s.synth.Synthesize(sctx, &tts.Request{Text: req.Text, VoiceID: req.Voice})
	scancel()
	if err != nil {
		s.fail(ctx, StageSynthesize, req, err)
		return
	}

	if s.onStart != nil {
		s.onStart(req)
	}
	if err := s.player.Play(ctx, res); err != nil {
		s.fail(ctx, StagePlay, req, err)
	}
}

func (s *Scheduler) fail(ctx context.Context, stage string, req Request, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	perr := &PlaybackError{Stage: stage, Text: req.Text, Err: err}
	metrics.PlaybackFailures.WithLabelValues(stage).Inc()
	s.logger.Warnw("playback failed", "stage", stage, "error", err)
	if s.onError != nil {
		s.onError(perr)
	}
}

// finish pops the next request or clears the speaking flag. Runs that were
// superseded by Stop leave the state alone.
func (s *Scheduler) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		metrics.SpeechQueueDepth.Set(float64(len(s.queue)))
		s.startLocked(next)
		return
	}
	s.cancel = nil
	s.speaking = false
	s.notifyLocked(false)
}

func (s *Scheduler) notifyLocked(v bool) {
	for {
		select {
		case s.changes <- v:
			return
		default:
		}
		select {
		case <-s.changes:
		default:
		}
	}
}
