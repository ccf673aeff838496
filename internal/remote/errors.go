package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTimeout is returned when a request does not complete within the
// configured timeout.
var ErrTimeout = errors.New("remote request timed out")

// TransportError reports a non-success HTTP status from the endpoint.
type TransportError struct {
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote endpoint returned status %d %s", e.Status, http.StatusText(e.Status))
}

// Temporary reports whether the status is worth retrying.
func (e *TransportError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// RejectedError is a domain-level failure: the transport succeeded but the
// backend answered with success=false.
type RejectedError struct {
	Action  string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote rejected %s", e.Action)
	}
	return fmt.Sprintf("remote rejected %s: %s", e.Action, e.Message)
}

// IsRejected reports whether err is a domain-level rejection.
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

func retryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && te.Temporary()
}
