package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors every backend error unwraps to.
var (
	// ErrUniqueViolation is returned when an insert collides with an
	// existing primary key.
	ErrUniqueViolation = errors.New("unique violation")

	// ErrBackendUnavailable covers network failures, timeouts, 5xx
	// responses and transient database conditions such as serialization
	// failures. Operations failing with it are safe to replay.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBadResponse is returned when a response cannot be interpreted,
	// e.g. an undecodable body or a missing row count.
	ErrBadResponse = errors.New("bad backend response")

	// ErrUnauthorized is returned on 401 and 403 responses.
	ErrUnauthorized = errors.New("backend unauthorized")

	// ErrRequestRejected is returned for any other client-side rejection.
	ErrRequestRejected = errors.New("backend rejected request")

	// ErrUnsupportedFilter is returned when a filter cannot be rendered for
	// the backend, e.g. a structured value in a comparison.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrNotSubscribed is returned by Unsubscribe on a subscription that is
	// already closed.
	ErrNotSubscribed = errors.New("not subscribed")
)

// BackendError describes a failed backend call. Code carries the
// PostgreSQL SQLSTATE when the backend reports one.
type BackendError struct {
	Status    int
	Code      string
	Message   string
	Details   string
	Hint      string
	Retryable bool

	// Err is one of the package sentinels.
	Err error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (http %d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	return b.String()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return errors.Is(err, ErrBackendUnavailable)
}
