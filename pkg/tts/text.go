package tts

import "context"

// Text is a Provider for deployments without speech. It returns the
// sanitized text with no audio.
type Text struct{}

// Synthesize returns a result carrying only the sanitized text.
func (Text) Synthesize(ctx context.Context, req *Request) (*AudioResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := Sanitize(req.Text)
	if text == "" {
		return nil, WrapError("text", ErrEmptyText)
	}
	return &AudioResult{Text: text, CharCount: len([]rune(text))}, nil
}

// Health always succeeds.
func (Text) Health(context.Context) error { return nil }

// Close is a no-op.
func (Text) Close() error { return nil }

var _ Provider = Text{}
