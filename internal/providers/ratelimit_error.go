package providers

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// RateLimitError carries the Retry-After hint from a 429 response so
// callers can back off precisely instead of guessing.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimitError unwraps err looking for a *RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter reads a Retry-After header value, which upstream APIs
// send as either an integer seconds count or (rarely) an HTTP date. Only
// the seconds form is attempted; anything else yields zero and the
// caller falls back to its own default backoff.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
