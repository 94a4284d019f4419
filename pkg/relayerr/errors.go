package relayerr

import (
	"errors"
	"fmt"
)

// Kind classifies every failure surfaced by the SDK.
type Kind string

const (
	// KindInvalidArgument is a malformed input field, detected before any network call.
	KindInvalidArgument Kind = "invalid_argument"
	// KindInvalidPhoneNumber is a phone number that failed normalization.
	KindInvalidPhoneNumber Kind = "invalid_phone_number"
	// KindInvalidKey is malformed or destroyed private key material.
	KindInvalidKey Kind = "invalid_key"
	// KindRelayUnavailable is a transport-level failure: no usable response from the relay.
	KindRelayUnavailable Kind = "relay_unavailable"
	// KindRelayRejected is an envelope with a nonzero code.
	KindRelayRejected Kind = "relay_rejected"
)

// Sentinels for errors.Is matching. They match any *Error of the same kind.
var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrInvalidPhoneNumber = &Error{Kind: KindInvalidPhoneNumber}
	ErrInvalidKey         = &Error{Kind: KindInvalidKey}
	ErrRelayUnavailable   = &Error{Kind: KindRelayUnavailable}
	ErrRelayRejected      = &Error{Kind: KindRelayRejected}
)

// Error is the single error type returned by the public SDK surface.
type Error struct {
	Kind Kind
	// Code is the relay envelope code; only set for KindRelayRejected.
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "relay client error"
	}
	var msg string
	switch e.Kind {
	case KindRelayRejected:
		msg = fmt.Sprintf("relay rejected request (code=%d): %s", e.Code, e.Message)
	case "":
		msg = e.Message
	default:
		if e.Message == "" {
			msg = string(e.Kind)
		} else {
			msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause satisfies the github.com/pkg/errors causer interface.
func (e *Error) Cause() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with a
// nonzero Code additionally requires the codes to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// InvalidPhoneNumber builds a KindInvalidPhoneNumber error for the given raw input.
func InvalidPhoneNumber(raw string, cause error) error {
	return &Error{Kind: KindInvalidPhoneNumber, Message: fmt.Sprintf("invalid phone number %q", raw), Err: cause}
}

// InvalidKey builds a KindInvalidKey error. The message must never contain key material.
func InvalidKey(message string, cause error) error {
	return &Error{Kind: KindInvalidKey, Message: message, Err: cause}
}

// RelayUnavailable builds a KindRelayUnavailable error.
func RelayUnavailable(message string, cause error) error {
	return &Error{Kind: KindRelayUnavailable, Message: message, Err: cause}
}

// RelayRejected builds a KindRelayRejected error from an envelope code and message.
func RelayRejected(code int, message string) error {
	return &Error{Kind: KindRelayRejected, Code: code, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
