package dialogue

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/teslashibe/go-jarvis/pkg/inference"
)

// Category classifies a backend failure for the user-facing reply.
type Category string

const (
	CategoryUnauthorized   Category = "unauthorized"
	CategoryRateLimited    Category = "rate_limited"
	CategoryQuotaExhausted Category = "quota_exhausted"
	CategoryTimeout        Category = "timeout"
	CategoryTransport      Category = "transport"
	CategoryUnknown        Category = "unknown"
)

// Error is a failed Send after any key rotation.
type Error struct {
	Category Category
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dialogue: %s after %d attempt(s): %v", e.Category, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an error to its Category.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var de *Error
	if errors.As(err, &de) {
		return de.Category
	}

	if apiErr, ok := inference.AsAPIError(err); ok {
		switch {
		case apiErr.IsPaymentRequired():
			return CategoryQuotaExhausted
		case apiErr.IsUnauthorized():
			return CategoryUnauthorized
		case apiErr.IsRateLimited():
			return CategoryRateLimited
		case apiErr.IsServerError():
			return CategoryTransport
		}
		return CategoryUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryTransport
	}

	return CategoryUnknown
}
