// internal/api/errors.go
//
// Error taxonomy for remote calls. The wizard stores these verbatim in the
// session's last-error slot; the TUI and CLI translate Kind into user copy.

package api

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the server reports a missing resource.
var ErrNotFound = errors.New("api: resource not found")

// ErrorKind categorizes remote failures.
type ErrorKind string

const (
	// KindValidation means the server rejected the request payload.
	KindValidation ErrorKind = "validation"

	// KindUpload means the document itself was refused (size, type).
	KindUpload ErrorKind = "upload"

	// KindExtraction means the server's rule-extraction pipeline failed
	// after accepting the document.
	KindExtraction ErrorKind = "extraction"

	// KindServer covers transient 5xx-class failures worth retrying.
	KindServer ErrorKind = "server"

	// KindNotFound mirrors ErrNotFound with the server's reason attached.
	KindNotFound ErrorKind = "not_found"

	// KindUnauthorized means the configured token was rejected.
	KindUnauthorized ErrorKind = "unauthorized"
)

// APIError is a remote failure with the server-reported reason, when the
// server provided one.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Reason     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api: %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("api: %s (HTTP %d)", e.Kind, e.StatusCode)
}

// Message returns the server reason or a generic fallback suitable for
// direct display.
func (e *APIError) Message() string {
	if e.Reason != "" {
		return e.Reason
	}
	switch e.Kind {
	case KindValidation:
		return "The server rejected the request. Check the entered values."
	case KindUpload:
		return "The document was rejected. Check its size and file type."
	case KindExtraction:
		return "Rule extraction failed on the server. Try uploading again."
	case KindUnauthorized:
		return "The API token was rejected. Check your configuration."
	case KindNotFound:
		return "The requested record no longer exists."
	default:
		return "The server is temporarily unavailable. Try again."
	}
}

// KindOf extracts the error kind from a wrapped error chain. Non-API
// errors (timeouts, connection resets) report KindServer since retrying is
// the right reaction to those too.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindServer
}

// IsRetryable reports whether the failure class is worth re-attempting
// with the same input.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindServer, KindExtraction:
		return true
	}
	return false
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindUnauthorized
	case status == 404:
		return KindNotFound
	case status == 400 || status == 422:
		return KindValidation
	case status == 413 || status == 415:
		return KindUpload
	default:
		return KindServer
	}
}
