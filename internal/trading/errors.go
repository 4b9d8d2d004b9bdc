package trading

import (
	"errors"
	"fmt"
)

// NetworkError reports a call that never got a usable answer from the
// exchange: connection failure, timeout, rate limiting or a 5xx response.
// The same call may succeed on a later cycle.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError reports a call the exchange answered and rejected.
type APIError struct {
	Op      string
	Code    int64
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: api error %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: api error: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err carries a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsAPIError reports whether err carries an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
