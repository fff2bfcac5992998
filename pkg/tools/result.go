package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
)

// Outcome is the completion of a deferred result.
type Outcome struct {
	Message conversation.Message
	Err     error
}

type resultKind int

const (
	kindImmediate resultKind = iota
	kindDeferred
)

// Result is what a handler produces: either an Immediate message or a
// Deferred completion. Callers consume it only through Await.
type Result struct {
	kind     resultKind
	message  conversation.Message
	err      error
	deferred <-chan Outcome
}

// Immediate wraps an already available message.
func Immediate(m conversation.Message) Result {
	return Result{kind: kindImmediate, message: m}
}

// Failed wraps an immediate failure.
func Failed(err error) Result {
	return Result{kind: kindImmediate, err: err}
}

// Deferred wraps a completion that will deliver exactly one Outcome.
func Deferred(ch <-chan Outcome) Result {
	return Result{kind: kindDeferred, deferred: ch}
}

// IsDeferred reports whether the result completes asynchronously.
func (r Result) IsDeferred() bool {
	return r.kind == kindDeferred
}

// Await blocks until the result is available or ctx is done.
func (r Result) Await(ctx context.Context) (conversation.Message, error) {
	if r.kind == kindImmediate {
		return r.message, r.err
	}
	if r.deferred == nil {
		return conversation.Message{}, ErrNoResult
	}
	select {
	case out, ok := <-r.deferred:
		if !ok {
			return conversation.Message{}, ErrNoResult
		}
		return out.Message, out.Err
	case <-ctx.Done():
		return conversation.Message{}, ctx.Err()
	}
}

// Reply builds the assistant message produced by a local tool.
func Reply(content string) conversation.Message {
	return conversation.NewMessage(conversation.PrefixLocal, conversation.RoleAssistant, content)
}

// ToText coerces a handler value into message content.
func ToText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", ErrNoResult
	case string:
		return t, nil
	case conversation.Message:
		return t.Content, nil
	case *conversation.Message:
		return t.Content, nil
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	case error:
		return "", t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("tools: coerce result: %w", err)
	}
	return string(data), nil
}

// toMessage converts a handler value into an assistant message.
func toMessage(v any) (conversation.Message, error) {
	if m, ok := v.(conversation.Message); ok && m.Role == conversation.RoleAssistant {
		return m, nil
	}
	text, err := ToText(v)
	if err != nil {
		return conversation.Message{}, err
	}
	return Reply(text), nil
}
