package tools

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-jarvis/pkg/intent"
)

var (
	// ErrNoResult is returned when a handler completes without a value.
	ErrNoResult = errors.New("tools: handler produced no result")

	// ErrUnknownTool is returned when no handler is registered for a tag.
	ErrUnknownTool = errors.New("tools: unknown tool")
)

// ToolError is a local handler failure: an error, a panic, a timeout or an
// unknown tag.
type ToolError struct {
	Tag intent.Tag
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tools: %s: %v", e.Tag, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// IsToolError reports whether err is a ToolError.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
