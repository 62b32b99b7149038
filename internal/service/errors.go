package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a service error for the transport layer
type Kind int

const (
	KindInvalid Kind = iota + 1
	KindNotFound
	KindConflict
)

// User-facing messages matched by clients
const (
	MsgDifferentShop     = "Object belongs to a different shop than the basket"
	MsgInsufficientStock = "Insufficient stock"
	MsgFieldRequired     = "This field is required."
	MsgInvalidCode       = "Invalid code"
	MsgBasketFinished    = "Basket is already finished"
	MsgBasketLocked      = "Basket is locked by another request"
)

var (
	// ErrMalformedBasketID is returned when a basket identifier is not "{shop}-{key}"
	ErrMalformedBasketID = errors.New("malformed basket id")
)

// Error is a business-rule violation that leaves the basket unchanged
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Errors  []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for field, msg := range e.Fields {
		fmt.Fprintf(&b, "; %s: %s", field, msg)
	}
	for _, msg := range e.Errors {
		fmt.Fprintf(&b, "; %s", msg)
	}
	return b.String()
}

func invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

func invalidField(field, msg string) *Error {
	return &Error{Kind: KindInvalid, Message: msg, Fields: map[string]string{field: msg}}
}

func notFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func objectDoesNotExist(field string, id int64) *Error {
	return invalidField(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
}

// AsError extracts a service error from err
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// reason returns a low-cardinality metric label for err
func reason(err error) string {
	e, ok := AsError(err)
	if !ok {
		return "internal"
	}
	switch {
	case e.Kind == KindNotFound:
		return "not_found"
	case e.Kind == KindConflict:
		return "locked"
	case e.Message == MsgInsufficientStock:
		return "insufficient_stock"
	case e.Message == MsgDifferentShop:
		return "different_shop"
	default:
		return "invalid"
	}
}
