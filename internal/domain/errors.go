package domain

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindBadRequest ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvariant
	KindUnsupportedMediaType
)

// Status returns the HTTP status code for the kind.
func (k ErrorKind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvariant:
		return http.StatusUnprocessableEntity
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an application error whose message is safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Details []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

func NewBadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func NewUnauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func NewForbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "Forbidden access."}
}

func NewNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func NewInvariant(details []FieldError) *Error {
	return &Error{Kind: KindInvariant, Message: "Invalid Validation", Details: details}
}

func NewUnsupportedMediaType(details []FieldError) *Error {
	return &Error{Kind: KindUnsupportedMediaType, Message: "Unsupported Media Type.", Details: details}
}

// KindOf returns the kind of err if it is (or wraps) an *Error, zero otherwise.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
