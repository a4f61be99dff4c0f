package domain

import (
	"errors"
	"net/http"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpload indicates a required media upload failed
	ErrUpload = errors.New("upload failed")

	// ErrInternal indicates a violated post-condition or unexpected failure
	ErrInternal = errors.New("internal error")

	// ErrTokenExpired indicates the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the token is malformed, of the wrong kind or badly signed
	ErrTokenInvalid = errors.New("token invalid")
)

// Error is a domain failure carrying a human message and an optional list of
// structured details. Kind is one of the sentinel errors above and decides the
// status code reported at the API boundary.
type Error struct {
	Kind    error
	Message string
	Errors  []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// StatusCode maps the error kind to an HTTP status code.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case ErrInvalidInput, ErrUpload:
		return http.StatusBadRequest
	case ErrAlreadyExists:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WithErrors attaches structured details and returns the same error.
func (e *Error) WithErrors(details ...string) *Error {
	e.Errors = append(e.Errors, details...)
	return e
}

// NewValidationError reports malformed or missing input (400).
func NewValidationError(message string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: message}
}

// NewConflictError reports a uniqueness violation (409).
func NewConflictError(message string) *Error {
	return &Error{Kind: ErrAlreadyExists, Message: message}
}

// NewNotFoundError reports a missing entity (404).
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// NewAuthError reports a credential or token verification failure (401).
func NewAuthError(message string, cause error) *Error {
	return &Error{Kind: ErrUnauthorized, Message: message, Cause: cause}
}

// AuthFailure reports an unexpected failure on an authentication path as an
// auth error whose message is the cause's own message.
func AuthFailure(cause error) *Error {
	return &Error{Kind: ErrUnauthorized, Message: cause.Error(), Cause: cause}
}

// NewUploadError reports a failed required upload (400).
func NewUploadError(message string, cause error) *Error {
	return &Error{Kind: ErrUpload, Message: message, Cause: cause}
}

// NewInternalError reports a violated post-condition (500).
func NewInternalError(message string, cause error) *Error {
	return &Error{Kind: ErrInternal, Message: message, Cause: cause}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
