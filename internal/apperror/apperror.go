package apperror

import (
	"errors"
	"fmt"
)

// Error kinds. Domain packages define their own sentinels on top of these so
// callers can match either the precise error or its kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrInactive          = errors.New("inactive")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrStorage           = errors.New("storage error")
)

// Error is a business error carrying a human readable message and its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New creates an error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps an underlying store failure. Nil stays nil.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// KindOf returns the kind of err, or nil when err is not a known business error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrValidation,
		ErrInsufficientStock,
		ErrInsufficientFunds,
		ErrIllegalTransition,
		ErrInactive,
		ErrConflict,
		ErrUnauthorized,
		ErrStorage,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
