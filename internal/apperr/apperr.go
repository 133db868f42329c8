// Package apperr classifies failures that cross the trade engine boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a client-facing failure
type Kind int

const (
	Internal Kind = iota
	Validation
	UnsupportedPair
	InvalidSide
	PriceUnavailable
	PriceStale
	InsufficientBalance
	WalletNotFound
	TransientConflict
)

var codes = map[Kind]string{
	Internal:            "INTERNAL_ERROR",
	Validation:          "VALIDATION_ERROR",
	UnsupportedPair:     "UNSUPPORTED_PAIR",
	InvalidSide:         "INVALID_SIDE",
	PriceUnavailable:    "PRICE_UNAVAILABLE",
	PriceStale:          "PRICE_STALE",
	InsufficientBalance: "INSUFFICIENT_BALANCE",
	WalletNotFound:      "WALLET_NOT_FOUND",
	TransientConflict:   "TRANSIENT_CONFLICT",
}

// Code is the stable identifier sent to clients
func (k Kind) Code() string {
	if c, ok := codes[k]; ok {
		return c
	}
	return codes[Internal]
}

func (k Kind) String() string { return k.Code() }

// HTTPStatus maps a kind onto the status the API answers with
func (k Kind) HTTPStatus() int {
	switch k {
	case Internal:
		return http.StatusInternalServerError
	case TransientConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// Retryable reports whether the same request may succeed unchanged later
func (k Kind) Retryable() bool {
	return k == PriceUnavailable || k == PriceStale || k == TransientConflict
}

// Error is a classified failure with a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(k, "")) works
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds a classified error with a formatted message
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it as the cause
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-safe message for err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "An unexpected error occurred"
}
