package breaker

import (
	"sync"
	"time"
)

// State of a circuit.
type State int

const (
	// StateClosed: calls flow normally.
	StateClosed State = iota

	// StateOpen: calls are rejected without a network attempt.
	StateOpen

	// StateHalfOpen: exactly one probing call is allowed through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// stateManager owns one circuit's state machine. All transitions happen
// under a single mutex, giving compare-and-set semantics: a threshold
// breach transitions CLOSED→OPEN exactly once even when concurrent
// failures race, and HALF_OPEN admits exactly one probe.
type stateManager struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	lastStateChange     time.Time
	probeInFlight       bool
}

func newStateManager() *stateManager {
	return &stateManager{
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// CanAttempt reports whether a call may proceed. In OPEN, the recovery
// timeout elapsing transitions to HALF_OPEN and admits the single probe;
// concurrent callers during the probe are rejected.
func (sm *stateManager) CanAttempt(cfg ResourceConfig) (allowed bool, halfOpenTransition bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch sm.state {
	case StateClosed:
		return true, false

	case StateOpen:
		if time.Since(sm.lastFailureAt) >= cfg.RecoveryTimeout {
			sm.transitionTo(StateHalfOpen)
			sm.probeInFlight = true
			return true, true
		}
		return false, false

	case StateHalfOpen:
		if !sm.probeInFlight {
			sm.probeInFlight = true
			return true, false
		}
		return false, false

	default:
		return false, false
	}
}

// RecordSuccess resets the failure streak and closes the circuit.
func (sm *stateManager) RecordSuccess() (stateChanged bool, from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.consecutiveFailures = 0
	sm.probeInFlight = false

	if sm.state != StateClosed {
		from = sm.state
		sm.transitionTo(StateClosed)
		return true, from, StateClosed
	}
	return false, sm.state, sm.state
}

// RecordFailure counts a dependency-fault failure. In HALF_OPEN the
// failed probe re-opens immediately; in CLOSED the circuit opens when
// the streak reaches the threshold. Duplicate increments past the
// threshold are tolerated, but the CLOSED→OPEN transition fires once.
func (sm *stateManager) RecordFailure(cfg ResourceConfig) (stateChanged bool, from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.consecutiveFailures++
	sm.lastFailureAt = time.Now()
	sm.probeInFlight = false

	switch sm.state {
	case StateHalfOpen:
		from = sm.state
		sm.transitionTo(StateOpen)
		return true, from, StateOpen

	case StateClosed:
		if sm.consecutiveFailures >= cfg.FailureThreshold {
			from = sm.state
			sm.transitionTo(StateOpen)
			return true, from, StateOpen
		}
	}
	return false, sm.state, sm.state
}

// ReleaseProbe frees the probe slot without recording an outcome, for
// admitted calls that finish with no success or failure verdict (cache
// hit, self-throttle, caller error, cancellation). State is unchanged;
// the next caller may probe again.
func (sm *stateManager) ReleaseProbe() {
	sm.mu.Lock()
	sm.probeInFlight = false
	sm.mu.Unlock()
}

// Reset forces the circuit back to CLOSED.
func (sm *stateManager) Reset() (stateChanged bool, from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.consecutiveFailures = 0
	sm.probeInFlight = false

	if sm.state != StateClosed {
		from = sm.state
		sm.transitionTo(StateClosed)
		return true, from, StateClosed
	}
	return false, sm.state, sm.state
}

// GetState returns the current state.
func (sm *stateManager) GetState() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// GetConsecutiveFailures returns the current failure streak.
func (sm *stateManager) GetConsecutiveFailures() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.consecutiveFailures
}

// GetLastFailureAt returns the time of the most recent counted failure.
func (sm *stateManager) GetLastFailureAt() time.Time {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.lastFailureAt
}

// transitionTo switches state; caller holds the lock.
func (sm *stateManager) transitionTo(next State) {
	sm.state = next
	sm.lastStateChange = time.Now()
}
