// Package tools routes classified utterances to local handlers.
//
// Handlers may answer synchronously, through a deferred completion or through
// a single-value stream. Every shape is normalized into a Result at the
// registration boundary, so Invoke always yields exactly one message or a
// *ToolError.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/intent"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
)

// DefaultTimeout bounds a single tool invocation. It leaves room for a
// weather report, which resolves a place and then fetches its forecast.
const DefaultTimeout = 30 * time.Second

// Registry maps tool tags to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[intent.Tag]Handler

	timeout time.Duration
	logger  *zap.SugaredLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout sets the per-invocation timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.Sugar().With("component", "tools.registry")
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[intent.Tag]Handler),
		timeout:  DefaultTimeout,
		logger:   zap.L().Sugar().With("component", "tools.registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a tag, replacing any previous one.
func (r *Registry) Register(tag intent.Tag, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = h
}

// Has reports whether a handler is registered for tag.
func (r *Registry) Has(tag intent.Tag) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[tag]
	return ok
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []intent.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]intent.Tag, 0, len(r.handlers))
	for t := range r.handlers {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Invoke runs the handler for tag and waits for its single message.
func (r *Registry) Invoke(ctx context.Context, tag intent.Tag, utterance string) (conversation.Message, error) {
	r.mu.RLock()
	h, ok := r.handlers[tag]
	r.mu.RUnlock()
	if !ok {
		metrics.ToolInvocations.WithLabelValues(string(tag), metrics.OutcomeError).Inc()
		return conversation.Message{}, &ToolError{Tag: tag, Err: ErrUnknownTool}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := r.call(ctx, h, utterance)
	if err == nil && msg.Content == "" {
		err = ErrNoResult
	}
	if err != nil {
		metrics.ToolInvocations.WithLabelValues(string(tag), metrics.OutcomeError).Inc()
		r.logger.Warnw("tool failed", "tag", tag, "error", err, "elapsed", time.Since(start))
		return conversation.Message{}, &ToolError{Tag: tag, Err: err}
	}

	metrics.ToolInvocations.WithLabelValues(string(tag), metrics.OutcomeOK).Inc()
	r.logger.Debugw("tool answered", "tag", tag, "elapsed", time.Since(start))
	return msg, nil
}

func (r *Registry) call(ctx context.Context, h Handler, utterance string) (msg conversation.Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tools: handler panic: %v", p)
		}
	}()
	return h.Handle(ctx, utterance).Await(ctx)
}
