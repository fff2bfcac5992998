// Package dialogue owns the conversation history sent to the remote chat
// backend and rotates API keys when a credential runs out of credit.
//
// A Send appends the user message once, then calls the backend with the whole
// history. A payment-required failure advances the KeyPool and retries the
// same call without touching history again, so a pool of K keys yields at
// most K attempts. Any other failure surfaces as *Error and the user message
// stays in history.
package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/inference"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
)

// FallbackReply is used when the backend answers with no content.
const FallbackReply = "Lo siento, no pude generar una respuesta."

// DefaultTimeout bounds a single backend attempt.
const DefaultTimeout = 30 * time.Second

// Client is the dialogue client. It is safe for concurrent use; Sends are
// serialized so history entries never interleave.
type Client struct {
	provider inference.Provider
	keys     *KeyPool

	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration

	sendMu sync.Mutex

	mu      sync.Mutex
	system  *conversation.Message
	history []conversation.Message
	gen     uint64

	logger *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithSampling sets temperature and max tokens. Zero keeps the provider default.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(c *Client) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

// WithTimeout bounds each backend attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Sugar().With("component", "dialogue.client")
		}
	}
}

// New creates a dialogue client.
func New(provider inference.Provider, keys *KeyPool, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		keys:     keys,
		timeout:  DefaultTimeout,
		logger:   zap.L().Sugar().With("component", "dialogue.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send appends text as a user message, asks the backend for a reply and
// appends the reply.
func (c *Client) Send(ctx context.Context, text string) (conversation.Message, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	start := time.Now()
	defer func() { metrics.DialogueLatency.Observe(time.Since(start).Seconds()) }()

	// A turn cancelled before it got here (by Clear) must not write into
	// the fresh history.
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return conversation.Message{}, &Error{Category: Classify(err), Err: err}
	}
	c.history = append(c.history, conversation.NewUserMessage(text))
	gen := c.gen
	c.mu.Unlock()

	maxAttempts := c.keys.Remaining()
	for attempt := 1; ; attempt++ {
		key := c.keys.Current()
		content, err := c.attempt(ctx, key)
		if err == nil {
			metrics.DialogueRequests.WithLabelValues(metrics.OutcomeOK).Inc()
			reply := conversation.NewAssistantMessage(content)
			c.mu.Lock()
			if c.gen == gen {
				c.history = append(c.history, reply)
			}
			c.mu.Unlock()
			c.logger.Debugw("reply received", "attempts", attempt, "elapsed", time.Since(start))
			return reply, nil
		}

		cat := Classify(err)
		metrics.DialogueRequests.WithLabelValues(string(cat)).Inc()

		if cat == CategoryQuotaExhausted && attempt < maxAttempts && c.keys.Advance() {
			metrics.KeyRotations.Inc()
			c.logger.Warnw("credential exhausted, rotating key",
				"attempt", attempt,
				"cursor", c.keys.Cursor(),
				"keys", c.keys.Len(),
			)
			continue
		}

		c.logger.Warnw("dialogue request failed", "category", cat, "attempts", attempt, "error", err)
		return conversation.Message{}, &Error{Category: cat, Attempts: attempt, Err: err}
	}
}

// attempt performs one backend call with key.
func (c *Client) attempt(ctx context.Context, key string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.provider.Chat(ctx, &inference.ChatRequest{
		Messages:    c.request(),
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		APIKey:      key,
	})
	switch {
	case errors.Is(err, inference.ErrNoChoices):
		return FallbackReply, nil
	case err != nil:
		return "", err
	case resp.Message.Content == "":
		return FallbackReply, nil
	}
	return resp.Message.Content, nil
}

// request snapshots history as wire messages, system entry first.
func (c *Client) request() []inference.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]inference.Message, 0, len(c.history)+1)
	if c.system != nil {
		out = append(out, inference.NewSystemMessage(c.system.Content))
	}
	for _, m := range c.history {
		out = append(out, inference.Message{Role: inference.Role(m.Role), Content: m.Content})
	}
	return out
}

// SetSystemContext replaces the system entry. It is always sent first.
func (c *Client) SetSystemContext(text string) {
	m := conversation.NewSystemMessage(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = &m
}

// Clear empties history, including the system entry. A reply to a Send in
// flight during Clear is returned but not recorded.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = nil
	c.history = nil
	c.gen++
}

// History returns a copy of the history with the system entry first.
func (c *Client) History() []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conversation.Message, 0, len(c.history)+1)
	if c.system != nil {
		out = append(out, *c.system)
	}
	return append(out, c.history...)
}

// Keys returns the key pool.
func (c *Client) Keys() *KeyPool {
	return c.keys
}
