package serr

import (
	"fmt"
	"runtime/debug"
)

// ServiceError is an error that carries the HTTP status it should be reported with
// and a set of diagnostic key/value pairs.
type ServiceError struct {
	Err        error
	Msg        string
	StackTrace string
	StatusCode int
	Env        map[string]string
}

func NewServiceError(err error, statusCode int, msg string, args ...any) *ServiceError {
	return &ServiceError{
		Err:        err,
		Msg:        fmt.Sprintf(msg, args...),
		StatusCode: statusCode,
		StackTrace: string(debug.Stack()),
		Env:        make(map[string]string),
	}
}

// With records a diagnostic value and returns the same error for chaining.
func (e *ServiceError) With(key string, val any) *ServiceError {
	e.Env[key] = fmt.Sprint(val)
	return e
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return e.Msg
	}

	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
