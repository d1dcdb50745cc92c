package payments

import (
	"errors"
	"fmt"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrInvalidPhone       = errors.New("invalid M-Pesa phone number format")
)

// GatewayError carries what the gateway said about a failed call.
// It unwraps to ErrGatewayUnavailable or ErrGatewayRejected.
type GatewayError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Body       []byte
	kind       error
	cause      error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("mpesa %s: %v", e.Op, e.kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" code=%s", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func unavailable(op string, status int, body []byte, cause error) *GatewayError {
	return &GatewayError{Op: op, StatusCode: status, Body: body, kind: ErrGatewayUnavailable, cause: cause}
}

func rejected(op, code, message string, body []byte) *GatewayError {
	return &GatewayError{Op: op, Code: code, Message: message, Body: body, kind: ErrGatewayRejected}
}

// ParseError is returned when a callback body does not have the STK callback shape.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid callback payload: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid callback payload: %s", e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }
