package curseforge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound matches any *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

type (
	// NetworkError is a transport failure: DNS, connection reset, TLS, or a
	// request that exceeded its deadline.
	NetworkError struct {
		URL     string
		Err     error
		Timeout bool
	}

	// HTTPStatusError is a non-2xx catalog response.
	HTTPStatusError struct {
		StatusCode int
		Body       string
		URL        string
		RetryAfter time.Duration // from the Retry-After header, zero if absent
	}

	// DecodeError reports a response body that is not the expected JSON.
	DecodeError struct {
		URL string
		Err error
	}

	// NotFoundError reports a catalog resource that does not exist, either by
	// HTTP 404 or by a response without a data payload.
	NotFoundError struct {
		Resource string
		ID       string
	}
)

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network error: timeout requesting %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("api request failed: status %d (%s)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("api request failed: status %d (%s), body: %s", e.StatusCode, e.URL, body)
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode json response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsTransient reports whether err is worth retrying later: a transport
// failure, a rate limit, or a server-side error.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	return false
}
