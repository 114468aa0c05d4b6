// Package errcode provides the layered error codes used across the
// traffic-control core.
// Code format: MMBBBB (MM = module code, BBBB = business code).
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError is an error carrying a stable code, a machine-readable
// key, an HTTP status mapping, context data and the original cause.
type LayeredError struct {
	module     string                 // owning module (admission, gateway, core)
	code       int                    // full code (MMBBBB)
	key        string                 // stable machine-readable key (e.g. THROTTLING_LIMIT_EXCEEDED)
	msg        string                 // default human message
	httpStatus int                    // HTTP status mapping
	data       map[string]interface{} // context data
	cause      error                  // wrapped error
}

// New creates a layered error.
// moduleCode: 10-99; businessCode: 0001-9999.
func New(moduleCode, businessCode int, module, key, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusOK
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		key:        key,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]interface{}),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Code returns the full numeric code.
func (e *LayeredError) Code() int { return e.code }

// Module returns the owning module name.
func (e *LayeredError) Module() string { return e.module }

// Key returns the stable machine-readable key.
func (e *LayeredError) Key() string { return e.key }

// Message returns the human message.
func (e *LayeredError) Message() string { return e.msg }

// HTTPStatus returns the mapped HTTP status code.
func (e *LayeredError) HTTPStatus() int { return e.httpStatus }

// Data returns the attached context data.
func (e *LayeredError) Data() map[string]interface{} { return e.data }

// Unwrap supports errors.Unwrap chains.
func (e *LayeredError) Unwrap() error { return e.cause }

// Is matches by code so errors.Is works across wrapped instances.
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

// WithMsg replaces the message (returns a new instance).
func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	return &clone
}

// WithMsgf replaces the message with a formatted one (returns a new instance).
func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData attaches a context value (returns a new instance).
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	clone.data[key] = value
	return &clone
}

// WithFields attaches several context values (returns a new instance).
func (e *LayeredError) WithFields(fields map[string]interface{}) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	for k, v := range fields {
		clone.data[k] = v
	}
	return &clone
}

// Wrap attaches the original error (returns a new instance).
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

func (e *LayeredError) cloneData() map[string]interface{} {
	data := make(map[string]interface{}, len(e.data))
	for k, v := range e.data {
		data[k] = v
	}
	return data
}
