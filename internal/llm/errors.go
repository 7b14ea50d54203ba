package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means the backend could not be reached.
	ErrConnection = errors.New("llm backend not reachable")
	// ErrModelNotFound means the backend does not serve the requested model.
	ErrModelNotFound = errors.New("model not found")
	// ErrEmptyResponse means the backend answered with no content.
	ErrEmptyResponse = errors.New("empty response from model")
)

// StatusError is an unexpected HTTP status from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm api error: status %d", e.Code)
	}
	return fmt.Sprintf("llm api error: status %d: %s", e.Code, e.Message)
}

// Retryable reports whether err is worth another request. Empty replies,
// timeouts and 5xx statuses are. Connection failures, missing models and
// other HTTP statuses are not: nothing changes between attempts.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrConnection) || errors.Is(err, ErrModelNotFound) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}
