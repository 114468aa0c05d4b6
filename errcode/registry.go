package errcode

import (
	"fmt"
	"net/http"
	"sync"
)

// Registry prevents two packages from claiming the same numeric code.
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string // code -> module:key
}

var globalRegistry = &Registry{codes: make(map[int]string)}

// Register records an error code and panics on conflict. Re-registering
// the identical code/key pair is idempotent.
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s:%s", err.Module(), err.Key())
	if existing, exists := r.codes[err.Code()]; exists {
		if existing != key {
			panic(fmt.Sprintf("error code conflict: %d registered as %s, cannot register as %s",
				err.Code(), existing, key))
		}
		return err
	}
	r.codes[err.Code()] = key
	return err
}

// Module codes for the traffic-control core.
const (
	moduleCore      = 10
	moduleAdmission = 20
	moduleGateway   = 30
)

// Core error taxonomy.
//
// CallerRejected and SystemOverload surface through the throttle
// middleware; the gateway errors surface to business handlers;
// InfrastructureFailure is logged only and never reaches the caller.
var (
	// ErrCallerRejected: a per-caller tier (ip/user/anonymous/endpoint) hit its cap.
	ErrCallerRejected = Register(New(moduleAdmission, 1, "admission",
		"THROTTLING_LIMIT_EXCEEDED", "too many requests, please retry later",
		http.StatusTooManyRequests))

	// ErrSystemOverload: the global tier rejected; signals system-wide backpressure.
	ErrSystemOverload = Register(New(moduleAdmission, 2, "admission",
		"THROTTLING_LIMIT_EXCEEDED", "system is under heavy load, please retry later",
		http.StatusServiceUnavailable))

	// ErrDependencyUnavailable: breaker open, no network attempt made.
	ErrDependencyUnavailable = Register(New(moduleGateway, 1, "gateway",
		"DEPENDENCY_UNAVAILABLE", "dependency temporarily unavailable",
		http.StatusServiceUnavailable))

	// ErrDependencyFailure: attempts exhausted against a failing dependency.
	ErrDependencyFailure = Register(New(moduleGateway, 2, "gateway",
		"DEPENDENCY_FAILURE", "dependency call failed",
		http.StatusBadGateway))

	// ErrDependencyThrottled: the per-dependency outbound cap was hit.
	ErrDependencyThrottled = Register(New(moduleGateway, 3, "gateway",
		"DEPENDENCY_THROTTLED", "dependency call budget exceeded",
		http.StatusServiceUnavailable))

	// ErrInfrastructureFailure: counter store unreachable; never surfaced
	// to end callers (the limiter fails open).
	ErrInfrastructureFailure = Register(New(moduleCore, 1, "core",
		"INFRASTRUCTURE_FAILURE", "infrastructure error",
		http.StatusInternalServerError))
)
