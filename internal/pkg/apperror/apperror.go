package apperror

import "net/http"

// AppError is a custom error type that includes an HTTP status code and an optional internal error code.
type AppError struct {
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound builds a 404 error.
func NotFound(message string) *AppError {
	return New(http.StatusNotFound, message)
}

// Conflict builds a 409 error. Clients may retry after re-reading state.
func Conflict(message string) *AppError {
	return New(http.StatusConflict, message)
}

// InvalidState builds a 400 error for requests that are well-formed but not
// allowed in the current state of the target.
func InvalidState(message string) *AppError {
	return New(http.StatusBadRequest, message)
}

// Forbidden builds a 403 error.
func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, message)
}

// Internal wraps an unexpected failure as a 500 error without exposing it.
func Internal(err error) *AppError {
	return Wrap(err, http.StatusInternalServerError, "internal server error")
}

// WithErr returns a copy of e that wraps err, keeping code and message.
func (e *AppError) WithErr(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Err: err}
}

// Is matches two AppErrors by code and message so sentinel values keep
// matching after WithErr.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}
