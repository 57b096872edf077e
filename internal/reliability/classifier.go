package reliability

import (
	"math"
	"net/http"
	"time"
)

// IsRetryableHTTPStatus reports whether a provider response status is
// worth retrying.
func IsRetryableHTTPStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ExponentialBackoff returns the wait before the given attempt, starting
// at base and doubling up to max. Attempt numbering starts at zero.
func ExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > max || d < 0 {
		return max
	}
	return d
}
