package forecast

import (
	"errors"
	"fmt"
)

// Failure kinds bubbled up per batch.
var (
	ErrTransientNetwork    = errors.New("forecast: transient network error")
	ErrUpstreamRateLimited = errors.New("forecast: upstream rate limited")
	ErrUpstreamBadRequest  = errors.New("forecast: upstream rejected request")
	ErrUpstreamMalformed   = errors.New("forecast: upstream response malformed")
	ErrTimeout             = errors.New("forecast: request timed out")
)

// apiError reports an HTTP status the client can't retry past.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("forecast: provider returned status %d: %s", e.status, e.body)
}

// classifyStatus maps an HTTP status to one of the failure-kind sentinels.
func classifyStatus(status int) error {
	switch {
	case status == 429:
		return ErrUpstreamRateLimited
	case status >= 500:
		return ErrTransientNetwork
	case status >= 400:
		return ErrUpstreamBadRequest
	default:
		return nil
	}
}

// isRetryable reports whether a batch failure should be retried within
// the same request's backoff loop.
func isRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrUpstreamRateLimited) || errors.Is(err, ErrTimeout)
}
