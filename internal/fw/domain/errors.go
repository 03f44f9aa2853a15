package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them without string matching.
type ErrorKind uint8

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindInvalidIdentifier
	ErrKindAliasNotFound
	ErrKindHostnameUnresolved
	ErrKindBlockedSetMissing
	ErrKindApplyFailed
	ErrKindUpstreamUnavailable
	ErrKindValidation
	ErrKindNotFound
)

// String returns a stable string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindInvalidIdentifier:
		return "invalid_identifier"
	case ErrKindAliasNotFound:
		return "alias_not_found"
	case ErrKindHostnameUnresolved:
		return "hostname_unresolved"
	case ErrKindBlockedSetMissing:
		return "blocked_set_missing"
	case ErrKindApplyFailed:
		return "apply_failed"
	case ErrKindUpstreamUnavailable:
		return "upstream_unavailable"
	case ErrKindValidation:
		return "validation"
	case ErrKindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure carrying a human readable message.
type Error struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks. They match by kind only.
var (
	ErrInvalidIdentifier   = &Error{Kind: ErrKindInvalidIdentifier}
	ErrAliasNotFound       = &Error{Kind: ErrKindAliasNotFound}
	ErrHostnameUnresolved  = &Error{Kind: ErrKindHostnameUnresolved}
	ErrBlockedSetMissing   = &Error{Kind: ErrKindBlockedSetMissing}
	ErrApplyFailed         = &Error{Kind: ErrKindApplyFailed}
	ErrUpstreamUnavailable = &Error{Kind: ErrKindUpstreamUnavailable}
	ErrValidation          = &Error{Kind: ErrKindValidation}
	ErrNotFound            = &Error{Kind: ErrKindNotFound}
)

// NewError creates a classified error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind. A nil err yields nil.
func WrapError(kind ErrorKind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or ErrKindUnknown.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindUnknown
}
