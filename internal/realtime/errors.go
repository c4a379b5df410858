package realtime

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindInvalidState     Kind = "invalid_state"
	KindTransportFailure Kind = "transport_failure"
	KindMalformedRequest Kind = "malformed_request"
)

// Error is a failed session event. Message is what the initiating client
// sees in its error event.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func sessionError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err, or "" when err is not a session error.
func KindOf(err error) Kind {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind
	}
	return ""
}

func clientMessage(err error) string {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Message
	}
	return "Internal server error"
}
