package errs

import (
	"errors"
	"fmt"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrEmptyResponse  = errors.New("sheet api: empty response")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
)

// ConfigurationError means the endpoint URL is missing or malformed. No request was sent.
type ConfigurationError struct {
	URL    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.URL == "" {
		return "sheet api: configuration: " + e.Reason
	}
	return fmt.Sprintf("sheet api: configuration: %s (%q)", e.Reason, e.URL)
}

// TransportError is a non-2xx HTTP response. StatusCode is 0 when the request
// failed before a response arrived (connection refused, DNS, TLS).
type TransportError struct {
	Action     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("sheet api: %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("sheet api: %s: HTTP %d", e.Action, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError: a body was received but no JSON value could be recovered from it.
type MalformedResponseError struct {
	Action  string
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("sheet api: %s: malformed response: %q", e.Action, e.Snippet)
}

// ApplicationError is a well-formed response carrying status "error" (or any
// status the caller did not accept).
type ApplicationError struct {
	Action  string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sheet api: %s: rejected by server", e.Action)
	}
	return fmt.Sprintf("sheet api: %s: %s", e.Action, e.Message)
}

type TimeoutError struct {
	Action   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sheet api: %s: timed out after %d attempts", e.Action, e.Attempts)
}

// IsUpstream reports whether err came from talking to the sheet endpoint.
func IsUpstream(err error) bool {
	var (
		te *TransportError
		me *MalformedResponseError
	)
	return errors.As(err, &te) || errors.As(err, &me) || errors.Is(err, ErrEmptyResponse)
}
