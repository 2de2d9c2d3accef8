package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgerrcode"
)

// postgrestError is the error body PostgREST returns for failed requests.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// mapHTTPError converts a non-2xx PostgREST response into a [*BackendError].
// Database errors are classified by their SQLSTATE, everything else by the
// HTTP status.
func mapHTTPError(resp *resty.Response) error {
	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	var body postgrestError
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(resp.Body()))
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}

	be := &BackendError{
		Status:  status,
		Code:    body.Code,
		Message: body.Message,
		Details: body.Details,
		Hint:    body.Hint,
	}

	switch {
	case body.Code == pgerrcode.UniqueViolation:
		be.Err = ErrUniqueViolation
	case retryablePgCode(body.Code):
		be.Err = ErrBackendUnavailable
		be.Retryable = true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		be.Err = ErrUnauthorized
	case status >= http.StatusInternalServerError,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests:
		be.Err = ErrBackendUnavailable
		be.Retryable = true
	default:
		be.Err = ErrRequestRejected
	}

	return be
}

// mapTransportError wraps a failure that happened before any response was
// received.
func mapTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request: %w", op, err)
	}
	return &BackendError{
		Message:   fmt.Sprintf("%s request: %v", op, err),
		Retryable: true,
		Err:       ErrBackendUnavailable,
	}
}
