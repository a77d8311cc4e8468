package errors

import (
	"errors"
	"net/http"
)

// CustomError carries the HTTP status the trigger surface answers with.
type CustomError struct {
	Code    int
	Message string
	Err     error
}

func (e *CustomError) Error() string {
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

func newError(code int, message string, cause error) error {
	return &CustomError{Code: code, Message: message, Err: cause}
}

func Technical(message string) error {
	return newError(http.StatusInternalServerError, message, nil)
}

// TechnicalCause keeps the underlying error reachable through errors.Is.
func TechnicalCause(message string, cause error) error {
	return newError(http.StatusInternalServerError, message, cause)
}

func BadRequest(message string) error {
	return newError(http.StatusBadRequest, message, nil)
}

func Unauthorized(message string) error {
	return newError(http.StatusUnauthorized, message, nil)
}

func NotFound(message string) error {
	return newError(http.StatusNotFound, message, nil)
}

// Unavailable reports a backing service that cannot be reached.
func Unavailable(message string, cause error) error {
	return newError(http.StatusServiceUnavailable, message, cause)
}

// GetStatusCode returns the status of the first CustomError in the chain,
// 500 when there is none.
func GetStatusCode(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return http.StatusInternalServerError
}
