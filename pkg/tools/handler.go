package tools

import (
	"context"
	"fmt"
)

// Handler answers an utterance routed to a local tool.
type Handler interface {
	Handle(ctx context.Context, utterance string) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, utterance string) Result

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, utterance string) Result {
	return f(ctx, utterance)
}

// Sync wraps a handler that answers synchronously.
// Structured values are coerced to text.
func Sync(fn func(ctx context.Context, utterance string) (any, error)) Handler {
	return HandlerFunc(func(ctx context.Context, utterance string) Result {
		v, err := fn(ctx, utterance)
		if err != nil {
			return Failed(err)
		}
		m, err := toMessage(v)
		if err != nil {
			return Failed(err)
		}
		return Immediate(m)
	})
}

// Async wraps a handler whose answer is produced later. The function runs on
// its own goroutine and the result completes exactly once.
func Async(fn func(ctx context.Context, utterance string) (any, error)) Handler {
	return HandlerFunc(func(ctx context.Context, utterance string) Result {
		ch := make(chan Outcome, 1)
		go func() {
			defer close(ch)
			defer recoverInto(ch)
			v, err := fn(ctx, utterance)
			if err != nil {
				ch <- Outcome{Err: err}
				return
			}
			m, err := toMessage(v)
			ch <- Outcome{Message: m, Err: err}
		}()
		return Deferred(ch)
	})
}

// Stream wraps a handler that emits its answer on a channel. The first value
// completes the call; a closed channel with no value is a failure.
func Stream(fn func(ctx context.Context, utterance string) (<-chan any, <-chan error)) Handler {
	return HandlerFunc(func(ctx context.Context, utterance string) Result {
		values, errs := fn(ctx, utterance)
		ch := make(chan Outcome, 1)
		go func() {
			defer close(ch)
			for {
				select {
				case v, ok := <-values:
					if !ok {
						ch <- Outcome{Err: pendingErr(errs)}
						return
					}
					m, err := toMessage(v)
					ch <- Outcome{Message: m, Err: err}
					return
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					if err != nil {
						ch <- Outcome{Err: err}
						return
					}
				case <-ctx.Done():
					ch <- Outcome{Err: ctx.Err()}
					return
				}
			}
		}()
		return Deferred(ch)
	})
}

// pendingErr returns an error already buffered on errs, or ErrNoResult.
func pendingErr(errs <-chan error) error {
	if errs == nil {
		return ErrNoResult
	}
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			return err
		}
	default:
	}
	return ErrNoResult
}

func recoverInto(ch chan<- Outcome) {
	if r := recover(); r != nil {
		ch <- Outcome{Err: fmt.Errorf("tools: handler panic: %v", r)}
	}
}
