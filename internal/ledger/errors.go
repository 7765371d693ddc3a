package ledger

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy shared by the client.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindNotFound
	KindConflict
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Kind sentinels, matched with errors.Is.
var (
	ErrAuth       = errors.New("auth error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTransport  = errors.New("transport error")
	ErrUnknown    = errors.New("unknown error")
)

var sentinels = map[Kind]error{
	KindUnknown:    ErrUnknown,
	KindAuth:       ErrAuth,
	KindValidation: ErrValidation,
	KindNotFound:   ErrNotFound,
	KindConflict:   ErrConflict,
	KindTransport:  ErrTransport,
}

// Error is a classified failure. Message is what the user sees; it carries the
// server-supplied detail when one was present.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel for e.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation is shorthand for a client-side precondition failure.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// KindOf returns the kind of err, KindUnknown when it is unclassified.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// Message returns the user-facing text for err, falling back when err is nil
// or carries no text.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if s := err.Error(); s != "" {
		return s
	}
	return fallback
}
