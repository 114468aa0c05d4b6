package httpclient

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// StatusError reports a non-2xx response surfaced as an error.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectionRefused reports whether err is a refused or reset
// connection.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// IsDependencyFault reports whether err counts against the dependency:
// a 5xx response, a timeout, or a refused connection. 4xx responses
// are the caller's fault and return false.
func IsDependencyFault(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return IsTimeout(err) || IsConnectionRefused(err)
}

// IsCallerFault reports whether err is a 4xx response.
func IsCallerFault(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
}
