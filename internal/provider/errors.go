package provider

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a non-2xx response from an upstream provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d", e.Provider, e.StatusCode)
}

// RateLimitError signals the provider rejected the request for quota
// reasons (HTTP 429 or a provider-specific limit envelope). The dispatcher
// skips the provider for the remainder of the window rather than just this
// call.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration // 0 when the provider gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

// MalformedError signals the adapter could not parse an upstream payload.
type MalformedError struct {
	Provider string
	Cause    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s returned malformed response: %v", e.Provider, e.Cause)
}

func (e *MalformedError) Unwrap() error { return e.Cause }

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
