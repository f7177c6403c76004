package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the SSO broker and server
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserBlocked        = errors.New("user is blocked")

	// Session errors
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotAttached      = errors.New("session not attached")

	// Broker errors
	ErrBrokerNotFound = errors.New("broker not found")
	ErrInvalidBroker  = errors.New("invalid broker")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
)

// ConfigurationError is returned at setup time when required configuration is
// missing or invalid. It is fatal and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: %s is required", e.Field)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// TransportError wraps a network level failure of a server command: the
// server could not be reached, the call timed out or was cancelled.
type TransportError struct {
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sso command %q: transport failure: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the server answered but the answer was not
// usable: a non-2xx status, a body that is not JSON, or an unexpected shape.
// Message holds the server's "error" marker when one was sent.
type ProtocolError struct {
	Command    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("sso command %q: protocol error", e.Command)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the server turned down the submitted credentials:
// a 401 carrying the invalid credentials marker, or a 429 from the login rate
// limit. Refusals of the session id itself (unknown broker, bad checksum,
// not attached) are not rejections.
func (e *ProtocolError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return e.Message == ErrInvalidCredentials.Error()
	case http.StatusTooManyRequests:
		return e.Message != ""
	}
	return false
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is, or wraps, a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
