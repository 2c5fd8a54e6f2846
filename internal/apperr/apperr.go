// Package apperr carries the error taxonomy shared by services and handlers.
// Every failure the service layer reports is classified as one Kind; the
// HTTP layer maps kinds to status codes with StatusCode and never inspects
// error text.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a failure for transport mapping.
type Kind int

const (
	Internal Kind = iota
	BadRequest
	Unauthorized
	Forbidden
	Conflict
	TooManyRequests
	UnprocessableEntity
)

// Error is a classified failure. Message is safe to surface to clients for
// every kind except Internal, which is always replaced with an opaque body.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal for anything
// unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// StatusCode maps a Kind to its HTTP status code. Pure function, independent
// of call depth.
func StatusCode(kind Kind) int {
	switch kind {
	case BadRequest:
		return fiber.StatusBadRequest
	case Unauthorized:
		return fiber.StatusUnauthorized
	case Forbidden:
		return fiber.StatusForbidden
	case Conflict:
		return fiber.StatusConflict
	case TooManyRequests:
		return fiber.StatusTooManyRequests
	case UnprocessableEntity:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ClientMessage returns the body to send for err. Internal failures are
// never leaked.
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}
