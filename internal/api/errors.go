// Package api provides an HTTP client for the filedrop vault service
// with bearer authentication, automatic retry, and a closed error taxonomy.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is a normalized failure category. Every failure surfaced by this
// package maps to exactly one Kind.
type Kind string

const (
	// KindNetwork means no response was received at all (connection
	// refused, timeout, DNS failure).
	KindNetwork Kind = "network"
	// KindUnauthorized means the server rejected the bearer credential
	// (401 or 403).
	KindUnauthorized Kind = "unauthorized"
	// KindValidation means the server rejected the request payload
	// (400 or 422 with a structured validation message).
	KindValidation Kind = "validation"
	// KindServer means the server failed (status >= 500).
	KindServer Kind = "server"
	// KindUnknown covers everything else: malformed payloads, unexpected
	// status codes, shapes we cannot interpret.
	KindUnknown Kind = "unknown"
)

// Sentinel errors for kind classification.
// Use errors.Is(err, api.ErrUnauthorized) to check.
var (
	ErrNetwork      = errors.New("api: network failure")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrValidation   = errors.New("api: validation failed")
	ErrServer       = errors.New("api: server error")
	ErrUnknown      = errors.New("api: unknown failure")
)

// Error wraps a sentinel error with the HTTP status code (0 when no
// response was received) and the server's error message for debugging.
type Error struct {
	StatusCode int
	Kind       Kind
	Message    string
	Detail     string // raw response body, when one exists
	Err        error  // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("api: HTTP %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// sentinelFor returns the errors.Is sentinel for a Kind.
func sentinelFor(kind Kind) error {
	switch kind {
	case KindNetwork:
		return ErrNetwork
	case KindUnauthorized:
		return ErrUnauthorized
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServer
	default:
		return ErrUnknown
	}
}

// classifyStatus maps an HTTP status code to a Kind. The code is only
// consulted once a response is known to exist — transport failures never
// reach this function, so a dropped connection can never be misreported
// as a server error.
//
// Precedence, first match wins:
//  1. 401/403 -> unauthorized
//  2. 400/422 -> validation
//  3. >=500   -> server
//  4. else    -> unknown
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindValidation
	case code >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindUnknown
	}
}

// newStatusError builds an *Error for a non-2xx response.
func newStatusError(code int, message, detail string) *Error {
	kind := classifyStatus(code)

	return &Error{
		StatusCode: code,
		Kind:       kind,
		Message:    message,
		Detail:     detail,
		Err:        sentinelFor(kind),
	}
}

// newTransportError builds an *Error for a failure where no response was
// received.
func newTransportError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// Classify returns the Kind for any error produced by this package, or by
// code wrapping its errors. Context cancellation classifies as network:
// the caller gave up before a response arrived. Errors from outside this
// package classify as unknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	return KindUnknown
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
